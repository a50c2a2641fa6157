package assessment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Result is a computed score report. It is always derived from the question
// list, the answer map, and any essay AI scores; it is never stored as an
// independent source of truth.
type Result struct {
	Earned float64 `json:"earned_points"`
	Total  float64 `json:"total_points"`
}

// Percent returns the earned share of the total, 0 when the total is zero.
func (r Result) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return r.Earned / r.Total * 100
}

// AnswerKey builds the composite key for a cloze blank or passage
// sub-question at the given ordinal.
func AnswerKey(questionID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", questionID, ordinal)
}

// Score grades an assessment: every question contributes its nominal points to
// the total, earned points accumulate per the per-type rules, and the earned
// sum is rounded to one decimal place. Answers referencing unknown question
// ids are ignored. Essay questions award points proportional to an externally
// supplied 0-100 score; with no score present they contribute nothing earned.
func Score(questions []Question, answers map[string]string, essayScores map[string]float64) Result {
	var earned, total float64

	for _, q := range questions {
		switch q.Type {
		case TypeMultipleChoice:
			total += q.Points
			if idx := q.CorrectAnswerIndex; idx >= 0 && idx < len(q.Options) {
				if answers[q.ID] == q.Options[idx] {
					earned += q.Points
				}
			}

		case TypeTrueFalse:
			total += q.Points
			if ans, ok := parseBool(answers[q.ID]); ok && ans == q.CorrectBool {
				earned += q.Points
			}

		case TypeShortAnswer:
			total += q.Points
			if shortAnswerCorrect(q, answers[q.ID]) {
				earned += q.Points
			}

		case TypeCloze:
			points := ClozePoints(q)
			total += points
			blanks := ParseBlanks(q.QuestionText)
			if len(blanks) == 0 {
				continue
			}
			correct := 0
			for i, expected := range blanks {
				got := strings.TrimSpace(answers[AnswerKey(q.ID, i)])
				if got != "" && strings.EqualFold(got, expected) {
					correct++
				}
			}
			earned += points * float64(correct) / float64(len(blanks))

		case TypePassage:
			for i, sq := range q.SubQuestions {
				total += sq.Points
				if passageSubCorrect(sq, answers[AnswerKey(q.ID, i)]) {
					earned += sq.Points
				}
			}

		case TypeEssay:
			total += q.Points
			if ai, ok := essayScores[q.ID]; ok {
				earned += q.Points * clampScore(ai) / 100
			}
		}
	}

	return Result{Earned: round1(earned), Total: total}
}

func shortAnswerCorrect(q Question, answer string) bool {
	got := strings.TrimSpace(answer)
	if got == "" {
		return false
	}
	for _, want := range q.CorrectAnswers {
		want = strings.TrimSpace(want)
		if q.CaseSensitive {
			if got == want {
				return true
			}
		} else if strings.EqualFold(got, want) {
			return true
		}
	}
	return false
}

// passageSubCorrect applies the binary rule of the sub-question's declared
// type: multiple choice compares the selected option text against the option
// at the correct index, the others compare direct equality.
func passageSubCorrect(sq PassageSubQuestion, answer string) bool {
	got := strings.TrimSpace(answer)
	if got == "" {
		return false
	}
	switch sq.Type {
	case SubMultipleChoice:
		idx, err := strconv.Atoi(strings.TrimSpace(sq.CorrectAnswer))
		if err != nil || idx < 0 || idx >= len(sq.Options) {
			// Answer stored as literal option text rather than an index.
			return got == strings.TrimSpace(sq.CorrectAnswer)
		}
		return got == sq.Options[idx]
	case SubTrueFalse:
		gotB, okG := parseBool(got)
		wantB, okW := parseBool(sq.CorrectAnswer)
		return okG && okW && gotB == wantB
	case SubShortAnswer:
		return strings.EqualFold(got, strings.TrimSpace(sq.CorrectAnswer))
	}
	return false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
