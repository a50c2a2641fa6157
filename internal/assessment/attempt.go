package assessment

import (
	"errors"
	"time"
)

// AttemptStatus is the lifecycle state of an assessment attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

// ErrAttemptSubmitted is returned when answers are modified after submission.
var ErrAttemptSubmitted = errors.New("attempt already submitted")

// Attempt is one student's run through an assessment. It is the single owned
// mutable piece of state in the scoring path: answers accumulate while the
// attempt is in progress and freeze at submission.
type Attempt struct {
	ID           string
	AssessmentID string
	Status       AttemptStatus
	StartedAt    time.Time
	SubmittedAt  *time.Time

	answers     map[string]string
	essayScores map[string]float64
	result      *Result
}

// NewAttempt starts a fresh attempt; any answers from a previous attempt are
// gone by construction.
func NewAttempt(id, assessmentID string) *Attempt {
	return &Attempt{
		ID:           id,
		AssessmentID: assessmentID,
		Status:       AttemptInProgress,
		StartedAt:    time.Now().UTC(),
		answers:      make(map[string]string),
		essayScores:  make(map[string]float64),
	}
}

// RestoreAttempt rebuilds an attempt from persisted state.
func RestoreAttempt(id, assessmentID string, status AttemptStatus, answers map[string]string, essayScores map[string]float64) *Attempt {
	a := NewAttempt(id, assessmentID)
	a.Status = status
	for k, v := range answers {
		a.answers[k] = v
	}
	for k, v := range essayScores {
		a.essayScores[k] = v
	}
	return a
}

// SetAnswer records one answer, keyed by question id (or composite key for
// cloze blanks and passage sub-questions). Mutation after submission is not
// permitted.
func (a *Attempt) SetAnswer(key, value string) error {
	if a.Status != AttemptInProgress {
		return ErrAttemptSubmitted
	}
	a.answers[key] = value
	return nil
}

// SetAnswers records a batch of answers.
func (a *Attempt) SetAnswers(answers map[string]string) error {
	if a.Status != AttemptInProgress {
		return ErrAttemptSubmitted
	}
	for k, v := range answers {
		a.answers[k] = v
	}
	return nil
}

// SetEssayScore attaches an externally supplied 0-100 AI score for an essay
// question. Allowed until the attempt is graded, since essay grading happens
// at submission time.
func (a *Attempt) SetEssayScore(questionID string, score float64) error {
	if a.Status == AttemptGraded {
		return ErrAttemptSubmitted
	}
	a.essayScores[questionID] = score
	return nil
}

// Answers returns a copy of the recorded answers.
func (a *Attempt) Answers() map[string]string {
	out := make(map[string]string, len(a.answers))
	for k, v := range a.answers {
		out[k] = v
	}
	return out
}

// EssayScores returns a copy of the recorded essay AI scores.
func (a *Attempt) EssayScores() map[string]float64 {
	out := make(map[string]float64, len(a.essayScores))
	for k, v := range a.essayScores {
		out[k] = v
	}
	return out
}

// Submit freezes the attempt. Submitting twice is an error.
func (a *Attempt) Submit() error {
	if a.Status != AttemptInProgress {
		return ErrAttemptSubmitted
	}
	now := time.Now().UTC()
	a.Status = AttemptSubmitted
	a.SubmittedAt = &now
	return nil
}

// Grade computes and caches the score for a submitted attempt. The result is
// always derived from the question list plus the attempt's own answer state.
func (a *Attempt) Grade(questions []Question) (Result, error) {
	if a.Status == AttemptInProgress {
		return Result{}, errors.New("attempt not submitted")
	}
	r := Score(questions, a.answers, a.essayScores)
	a.result = &r
	a.Status = AttemptGraded
	return r, nil
}

// Result returns the cached score report, if the attempt has been graded.
func (a *Attempt) Result() (Result, bool) {
	if a.result == nil {
		return Result{}, false
	}
	return *a.result, true
}
