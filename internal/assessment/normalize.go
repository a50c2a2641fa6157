package assessment

import (
	"encoding/json"
	"strings"
)

// looseQuestion is the superset of fields seen in canonical payloads, authored
// exports, and AI-generated quiz records.
type looseQuestion struct {
	ID     string       `json:"id"`
	Type   QuestionType `json:"type"`
	Points float64      `json:"points"`

	QuestionText string `json:"question_text"`
	// Legacy AI-generation shape uses "question" for the text and
	// "correctAnswer" for the expected answer.
	Question      string          `json:"question"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`

	Options            []string `json:"options"`
	CorrectAnswerIndex *int     `json:"correct_answer_index"`

	CorrectBool    *bool    `json:"correct_answer"`
	CorrectAnswers []string `json:"correct_answers"`
	CaseSensitive  bool     `json:"case_sensitive"`
	ExactMatch     bool     `json:"exact_match"`

	PassageTitle string               `json:"passage_title"`
	PassageText  string               `json:"passage_text"`
	WordCount    int                  `json:"word_count"`
	SubQuestions []PassageSubQuestion `json:"questions"`

	RubricCriteria []Criterion `json:"rubric_criteria"`
	ModelSolution  string      `json:"model_solution"`
}

// Normalize coerces a question payload into the canonical variant set.
//
// Canonical payloads (a valid "type" field) pass through with defaults filled.
// Loose legacy records are classified in a fixed order that resolves ambiguous
// payloads deterministically:
//
//  1. options present                 => multiple_choice
//  2. correct-answer string, no opts  => short_answer
//  3. neither                         => essay
//
// The order matters and must not change: it is what disambiguates records
// that originate from AI generation calls.
func Normalize(raw json.RawMessage) (Question, bool) {
	var lq looseQuestion
	if err := json.Unmarshal(raw, &lq); err != nil {
		// "correct_answer" is a bool for true_false but a string in legacy
		// records; retry with the conflicting fields isolated.
		lq = looseQuestion{}
		var fallback struct {
			ID            string          `json:"id"`
			Type          QuestionType    `json:"type"`
			Points        float64         `json:"points"`
			Question      string          `json:"question"`
			QuestionText  string          `json:"question_text"`
			Options       []string        `json:"options"`
			CorrectAnswer json.RawMessage `json:"correctAnswer"`
			CorrectRaw    json.RawMessage `json:"correct_answer"`
		}
		if err := json.Unmarshal(raw, &fallback); err != nil {
			return Question{}, false
		}
		lq.ID = fallback.ID
		lq.Type = fallback.Type
		lq.Points = fallback.Points
		lq.Question = fallback.Question
		lq.QuestionText = fallback.QuestionText
		lq.Options = fallback.Options
		lq.CorrectAnswer = fallback.CorrectAnswer
		if lq.CorrectAnswer == nil {
			lq.CorrectAnswer = fallback.CorrectRaw
		}
	}

	if lq.Type.valid() {
		return normalizeCanonical(lq, raw)
	}
	return classifyLegacy(lq)
}

func normalizeCanonical(lq looseQuestion, raw json.RawMessage) (Question, bool) {
	var q Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return Question{}, false
	}
	if q.QuestionText == "" && lq.Question != "" {
		q.QuestionText = lq.Question
	}
	if q.Points <= 0 {
		switch q.Type {
		case TypeCloze:
			q.Points = ClozePoints(q)
		default:
			q.Points = 1
		}
	}
	if q.Type == TypePassage {
		for i := range q.SubQuestions {
			if q.SubQuestions[i].Points <= 0 {
				q.SubQuestions[i].Points = 1
			}
		}
	}
	return q, true
}

// classifyLegacy maps a loosely-typed record onto the variant set.
func classifyLegacy(lq looseQuestion) (Question, bool) {
	text := lq.QuestionText
	if text == "" {
		text = lq.Question
	}
	if strings.TrimSpace(text) == "" {
		return Question{}, false
	}

	answer := decodeAnswerString(lq.CorrectAnswer)

	q := Question{
		ID:           lq.ID,
		QuestionText: text,
		Points:       lq.Points,
	}
	if q.Points <= 0 {
		q.Points = 1
	}

	switch {
	case len(lq.Options) > 0:
		q.Type = TypeMultipleChoice
		q.Options = lq.Options
		q.CorrectAnswerIndex = 0
		if answer != "" {
			for i, opt := range lq.Options {
				if opt == answer {
					q.CorrectAnswerIndex = i
					break
				}
			}
		}
	case answer != "":
		q.Type = TypeShortAnswer
		q.CorrectAnswers = []string{answer}
	default:
		q.Type = TypeEssay
		q.RubricCriteria = lq.RubricCriteria
		q.ModelSolution = lq.ModelSolution
	}
	return q, true
}

// decodeAnswerString extracts a correct-answer literal, tolerating strings,
// numbers, and booleans in legacy payloads.
func decodeAnswerString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		switch v.(type) {
		case float64, bool:
			b, _ := json.Marshal(v)
			return string(b)
		}
	}
	return ""
}
