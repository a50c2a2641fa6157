package model

import "time"

// AssessmentExport is the top-level JSON structure for result export.
type AssessmentExport struct {
	AssessmentID string          `json:"assessment_id"`
	Title        string          `json:"title"`
	Topic        string          `json:"topic"`
	Date         string          `json:"date"`
	NumQuestions int             `json:"num_questions"`
	Attempts     []AttemptResult `json:"attempts"`
}

// AttemptResult holds one attempt's data for export.
type AttemptResult struct {
	AttemptID     string             `json:"attempt_id"`
	Status        string             `json:"status"`
	StartedAt     time.Time          `json:"started_at"`
	SubmittedAt   *time.Time         `json:"submitted_at,omitempty"`
	Answers       map[string]string  `json:"answers"`
	EssayScores   map[string]float64 `json:"essay_scores,omitempty"`
	EssayFeedback map[string]string  `json:"essay_feedback,omitempty"`
	Earned        float64            `json:"earned"`
	Total         float64            `json:"total"`
	Percent       float64            `json:"percent"`
}
