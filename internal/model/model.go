// Package model holds the shared platform records passed between the store,
// the handlers, and the CLI.
package model

import (
	"encoding/json"
	"time"
)

// Difficulty represents assessment difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Lesson represents one unit of learning content: a video (or document) with
// its raw transcript, user notes, and completion state. The raw transcript is
// stored exactly as uploaded; parsing happens on read.
type Lesson struct {
	ID            string    `json:"id"`
	Course        string    `json:"course"`
	Title         string    `json:"title"`
	VideoID       string    `json:"video_id,omitempty"`
	RawTranscript string    `json:"raw_transcript,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Completed     bool      `json:"completed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ChatMessage is one persisted message in a lesson's AI conversation.
type ChatMessage struct {
	ID        int64     `json:"id"`
	LessonID  string    `json:"lesson_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Assessment is the stored metadata record for a quiz or exam. Questions are
// kept as the JSON they were authored or generated with; the assessment
// package decodes and normalizes them on read.
type Assessment struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Topic         string          `json:"topic"`
	Description   string          `json:"description,omitempty"`
	QuestionsData json.RawMessage `json:"questions_data"`
	QuestionTypes string          `json:"question_types,omitempty"`
	Difficulty    Difficulty      `json:"difficulty,omitempty"`
	Source        string          `json:"source,omitempty"` // authored | generated
	CreatedAt     time.Time       `json:"created_at"`
}

// AttemptRecord is the stored form of one attempt at an assessment. Answers,
// essay scores, and essay feedback are the attempt session's maps serialized
// to JSON; Earned and Total are set once the attempt is graded.
type AttemptRecord struct {
	ID            string          `json:"id"`
	AssessmentID  string          `json:"assessment_id"`
	Status        string          `json:"status"`
	AnswersJSON   json.RawMessage `json:"answers,omitempty"`
	EssayScores   json.RawMessage `json:"essay_scores,omitempty"`
	EssayFeedback json.RawMessage `json:"essay_feedback,omitempty"`
	Earned        *float64        `json:"earned,omitempty"`
	Total         *float64        `json:"total,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty"`
	GradedAt      *time.Time      `json:"graded_at,omitempty"`
}

// ServerConfig holds runtime parameters set via CLI flags and config.
type ServerConfig struct {
	Addr          string // listen address, e.g. ":8080"
	DBPath        string
	AIBaseURL     string // OpenAI-compatible endpoint; empty means the default
	AIAPIKey      string
	AIModel       string
	Locale        string // default UI locale (en, ru)
	MaxChunkChars int    // transcript chunk size; 0 means the package default
	OverlapChars  int    // chunk overlap; 0 means the package default
}
