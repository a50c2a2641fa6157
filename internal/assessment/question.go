// Package assessment defines the closed question variant set, normalization of
// loose question payloads, attempt sessions, and the scoring engine.
package assessment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// QuestionType discriminates the closed set of question variants.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeCloze          QuestionType = "cloze"
	TypePassage        QuestionType = "passage"
	TypeEssay          QuestionType = "essay"
)

// valid reports whether t is one of the six known variants.
func (t QuestionType) valid() bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeShortAnswer, TypeCloze, TypePassage, TypeEssay:
		return true
	}
	return false
}

// Criterion is a single essay grading rubric entry.
type Criterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MaxPoints   float64 `json:"max_points"`
}

// SubQuestionType restricts passage sub-questions to single-answer kinds.
type SubQuestionType string

const (
	SubMultipleChoice SubQuestionType = "multiple_choice"
	SubShortAnswer    SubQuestionType = "short_answer"
	SubTrueFalse      SubQuestionType = "true_false"
)

// PassageSubQuestion is one independently scored question inside a passage.
// CorrectAnswer holds the option index (as text) for multiple choice, "true"
// or "false" for true/false, and the expected literal for short answer.
type PassageSubQuestion struct {
	ID            string          `json:"id"`
	Type          SubQuestionType `json:"question_type"`
	QuestionText  string          `json:"question_text"`
	Options       []string        `json:"options,omitempty"`
	CorrectAnswer string          `json:"correct_answer"`
	Points        float64         `json:"points"`
}

// UnmarshalJSON accepts the correct_answer shapes authored payloads carry:
// a JSON number for the multiple-choice option index, a boolean for
// true/false, or a plain string. All coerce to the string form the scoring
// rules compare against.
func (sq *PassageSubQuestion) UnmarshalJSON(data []byte) error {
	type plain PassageSubQuestion
	var aux struct {
		plain
		CorrectAnswer json.RawMessage `json:"correct_answer"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*sq = PassageSubQuestion(aux.plain)
	sq.CorrectAnswer = decodeAnswerString(aux.CorrectAnswer)
	return nil
}

// Question is one assessment question. Exactly the fields for its Type are
// meaningful; the scoring engine switches exhaustively on Type so a seventh
// variant is a compile-visible change everywhere it must be handled.
type Question struct {
	ID     string       `json:"id"`
	Type   QuestionType `json:"type"`
	Points float64      `json:"points"`

	// multiple_choice, true_false, short_answer, cloze, essay
	QuestionText string `json:"question_text,omitempty"`

	// multiple_choice
	Options            []string `json:"options,omitempty"`
	CorrectAnswerIndex int      `json:"correct_answer_index,omitempty"`

	// true_false
	CorrectBool bool `json:"correct_answer,omitempty"`

	// short_answer
	CorrectAnswers []string `json:"correct_answers,omitempty"`
	CaseSensitive  bool     `json:"case_sensitive,omitempty"`
	ExactMatch     bool     `json:"exact_match,omitempty"`

	// passage
	PassageTitle string               `json:"passage_title,omitempty"`
	PassageText  string               `json:"passage_text,omitempty"`
	WordCount    int                  `json:"word_count,omitempty"`
	SubQuestions []PassageSubQuestion `json:"questions,omitempty"`

	// essay
	RubricCriteria []Criterion `json:"rubric_criteria,omitempty"`
	ModelSolution  string      `json:"model_solution,omitempty"`
}

// Validate checks the per-question invariants: a known type, positive points,
// and for multiple choice a correct index within the option list.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question has no id")
	}
	if !q.Type.valid() {
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	if q.Points <= 0 {
		return fmt.Errorf("question %s: points must be positive, got %g", q.ID, q.Points)
	}
	if q.Type == TypeMultipleChoice {
		if len(q.Options) == 0 {
			return fmt.Errorf("question %s: multiple choice needs options", q.ID)
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
			return fmt.Errorf("question %s: correct_answer_index %d out of range [0, %d)",
				q.ID, q.CorrectAnswerIndex, len(q.Options))
		}
	}
	return nil
}

// ValidateSet checks a question list as a whole: per-question invariants plus
// id uniqueness within the assessment.
func ValidateSet(questions []Question) error {
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

var blankRe = regexp.MustCompile(`\[([^\[\]]+)\]`)

// ParseBlanks extracts the expected answers of a cloze question from its text,
// in left-to-right order: each bracketed span is one blank.
func ParseBlanks(questionText string) []string {
	matches := blankRe.FindAllStringSubmatch(questionText, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// ClozePoints is the canonical point value of a cloze question: the authored
// value when set, otherwise one point per blank with a floor of one.
func ClozePoints(q Question) float64 {
	if q.Points > 0 {
		return q.Points
	}
	blanks := len(ParseBlanks(q.QuestionText))
	if blanks < 1 {
		blanks = 1
	}
	return float64(blanks)
}

// DisplayText returns the cloze question text with blanks masked for
// presentation to the student.
func DisplayText(q Question) string {
	if q.Type != TypeCloze {
		return q.QuestionText
	}
	return blankRe.ReplaceAllString(q.QuestionText, "_____")
}

// NominalPoints is a question's contribution to the assessment total. For a
// passage the declared points field is informational only; the total is the
// sum of its sub-question points.
func (q Question) NominalPoints() float64 {
	switch q.Type {
	case TypeMultipleChoice, TypeTrueFalse, TypeShortAnswer, TypeEssay:
		return q.Points
	case TypeCloze:
		return ClozePoints(q)
	case TypePassage:
		var sum float64
		for _, sq := range q.SubQuestions {
			sum += sq.Points
		}
		return sum
	}
	return 0
}

// DecodeQuestions parses a questions_data payload: an array of canonical
// question objects, loose legacy records, or a mix. Records that cannot be
// classified are dropped; the list degrades rather than fails.
func DecodeQuestions(raw []byte) []Question {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]Question, 0, len(items))
	for i, item := range items {
		q, ok := Normalize(item)
		if !ok {
			continue
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		out = append(out, q)
	}
	return out
}
