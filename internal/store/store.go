package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studyflow/studyflow/internal/model"

	_ "modernc.org/sqlite"
)

// ErrAttemptLocked is returned when a write targets an attempt whose status
// no longer allows it (answers after submit, grading before submit).
var ErrAttemptLocked = errors.New("attempt is not in a writable state")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		course TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		video_id TEXT NOT NULL DEFAULT '',
		raw_transcript TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lesson_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (lesson_id) REFERENCES lessons(id)
	);

	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		questions_data TEXT NOT NULL,
		question_types TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'authored',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		assessment_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		answers TEXT NOT NULL DEFAULT '{}',
		essay_scores TEXT NOT NULL DEFAULT '{}',
		essay_feedback TEXT NOT NULL DEFAULT '{}',
		earned REAL,
		total REAL,
		started_at DATETIME NOT NULL,
		submitted_at DATETIME,
		graded_at DATETIME,
		FOREIGN KEY (assessment_id) REFERENCES assessments(id)
	);

	CREATE TABLE IF NOT EXISTS platform_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		sha256 TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateLesson stores a lesson. Timestamps are set here.
func (s *Store) CreateLesson(l model.Lesson) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO lessons (id, course, title, video_id, raw_transcript, notes, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Course, l.Title, l.VideoID, l.RawTranscript, l.Notes, l.Completed, now, now,
	)
	return err
}

// GetLesson returns a lesson by ID.
func (s *Store) GetLesson(id string) (model.Lesson, error) {
	var l model.Lesson
	err := s.db.QueryRow(
		`SELECT id, course, title, video_id, raw_transcript, notes, completed, created_at, updated_at
		 FROM lessons WHERE id = ?`, id,
	).Scan(&l.ID, &l.Course, &l.Title, &l.VideoID, &l.RawTranscript, &l.Notes, &l.Completed, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// ListLessons returns all lessons, optionally filtered by course.
func (s *Store) ListLessons(course string) ([]model.Lesson, error) {
	query := `SELECT id, course, title, video_id, raw_transcript, notes, completed, created_at, updated_at FROM lessons`
	var args []any
	if course != "" {
		query += ` WHERE course = ?`
		args = append(args, course)
	}
	query += ` ORDER BY created_at`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.ID, &l.Course, &l.Title, &l.VideoID, &l.RawTranscript, &l.Notes, &l.Completed, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// UpdateLessonTranscript replaces the lesson's raw transcript. The payload is
// stored exactly as received; parsing happens on read.
func (s *Store) UpdateLessonTranscript(id, raw string) error {
	res, err := s.db.Exec(
		`UPDATE lessons SET raw_transcript = ?, updated_at = ? WHERE id = ?`,
		raw, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateLessonNotes replaces the lesson's notes.
func (s *Store) UpdateLessonNotes(id, notes string) error {
	res, err := s.db.Exec(
		`UPDATE lessons SET notes = ?, updated_at = ? WHERE id = ?`,
		notes, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetLessonCompleted marks a lesson done or not done.
func (s *Store) SetLessonCompleted(id string, completed bool) error {
	res, err := s.db.Exec(
		`UPDATE lessons SET completed = ?, updated_at = ? WHERE id = ?`,
		completed, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AddChatMessage appends a message to a lesson's conversation history.
func (s *Store) AddChatMessage(msg model.ChatMessage) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO chat_messages (lesson_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.LessonID, msg.Role, msg.Content, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetChatMessages returns a lesson's conversation history, oldest first.
func (s *Store) GetChatMessages(lessonID string) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, lesson_id, role, content, created_at FROM chat_messages WHERE lesson_id = ? ORDER BY id`, lessonID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.LessonID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteTrailingAssistantMessage removes the most recent message of a
// lesson's conversation if it is an assistant message. Used when a
// regeneration replaces the previous answer.
func (s *Store) DeleteTrailingAssistantMessage(lessonID string) error {
	_, err := s.db.Exec(
		`DELETE FROM chat_messages WHERE id = (
			SELECT id FROM chat_messages WHERE lesson_id = ? ORDER BY id DESC LIMIT 1
		) AND role = 'assistant'`, lessonID,
	)
	return err
}

// CreateAssessment stores an assessment record.
func (s *Store) CreateAssessment(a model.Assessment) error {
	_, err := s.db.Exec(
		`INSERT INTO assessments (id, title, topic, description, questions_data, question_types, difficulty, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Topic, a.Description, string(a.QuestionsData), a.QuestionTypes, a.Difficulty, a.Source, time.Now(),
	)
	return err
}

// GetAssessment returns an assessment by ID.
func (s *Store) GetAssessment(id string) (model.Assessment, error) {
	var a model.Assessment
	var questions string
	err := s.db.QueryRow(
		`SELECT id, title, topic, description, questions_data, question_types, difficulty, source, created_at
		 FROM assessments WHERE id = ?`, id,
	).Scan(&a.ID, &a.Title, &a.Topic, &a.Description, &questions, &a.QuestionTypes, &a.Difficulty, &a.Source, &a.CreatedAt)
	a.QuestionsData = json.RawMessage(questions)
	return a, err
}

// ListAssessments returns all assessment records, newest first, without
// their question payloads.
func (s *Store) ListAssessments() ([]model.Assessment, error) {
	rows, err := s.db.Query(
		`SELECT id, title, topic, description, question_types, difficulty, source, created_at
		 FROM assessments ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assessments []model.Assessment
	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.Title, &a.Topic, &a.Description, &a.QuestionTypes, &a.Difficulty, &a.Source, &a.CreatedAt); err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

// CreateAttempt starts an attempt at an assessment.
func (s *Store) CreateAttempt(id, assessmentID string) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (id, assessment_id, status, started_at) VALUES (?, ?, 'in_progress', ?)`,
		id, assessmentID, time.Now(),
	)
	return err
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(id string) (model.AttemptRecord, error) {
	var a model.AttemptRecord
	var answers, essayScores, essayFeedback string
	err := s.db.QueryRow(
		`SELECT id, assessment_id, status, answers, essay_scores, essay_feedback, earned, total, started_at, submitted_at, graded_at
		 FROM attempts WHERE id = ?`, id,
	).Scan(&a.ID, &a.AssessmentID, &a.Status, &answers, &essayScores, &essayFeedback, &a.Earned, &a.Total, &a.StartedAt, &a.SubmittedAt, &a.GradedAt)
	a.AnswersJSON = json.RawMessage(answers)
	a.EssayScores = json.RawMessage(essayScores)
	a.EssayFeedback = json.RawMessage(essayFeedback)
	return a, err
}

// ListAttempts returns all attempts for an assessment, newest first.
func (s *Store) ListAttempts(assessmentID string) ([]model.AttemptRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, assessment_id, status, answers, essay_scores, essay_feedback, earned, total, started_at, submitted_at, graded_at
		 FROM attempts WHERE assessment_id = ? ORDER BY started_at DESC`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.AttemptRecord
	for rows.Next() {
		var a model.AttemptRecord
		var answers, essayScores, essayFeedback string
		if err := rows.Scan(&a.ID, &a.AssessmentID, &a.Status, &answers, &essayScores, &essayFeedback, &a.Earned, &a.Total, &a.StartedAt, &a.SubmittedAt, &a.GradedAt); err != nil {
			return nil, err
		}
		a.AnswersJSON = json.RawMessage(answers)
		a.EssayScores = json.RawMessage(essayScores)
		a.EssayFeedback = json.RawMessage(essayFeedback)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// UpdateAttemptAnswers replaces the attempt's answers. Rejected with
// ErrAttemptLocked once the attempt has been submitted.
func (s *Store) UpdateAttemptAnswers(id string, answers map[string]string) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE attempts SET answers = ? WHERE id = ? AND status = 'in_progress'`,
		string(data), id,
	)
	if err != nil {
		return err
	}
	return requireUnlocked(res)
}

// SubmitAttempt freezes an in-progress attempt.
func (s *Store) SubmitAttempt(id string) error {
	res, err := s.db.Exec(
		`UPDATE attempts SET status = 'submitted', submitted_at = ? WHERE id = ? AND status = 'in_progress'`,
		time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireUnlocked(res)
}

// GradeAttempt records the scoring result on a submitted attempt, including
// the per-question essay grader feedback.
func (s *Store) GradeAttempt(id string, essayScores map[string]float64, essayFeedback map[string]string, earned, total float64) error {
	scores, err := json.Marshal(essayScores)
	if err != nil {
		return err
	}
	feedback, err := json.Marshal(essayFeedback)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE attempts SET status = 'graded', essay_scores = ?, essay_feedback = ?, earned = ?, total = ?, graded_at = ?
		 WHERE id = ? AND status = 'submitted'`,
		string(scores), string(feedback), earned, total, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireUnlocked(res)
}

// requireRow maps a zero-row update to sql.ErrNoRows.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// requireUnlocked maps a zero-row guarded attempt update to ErrAttemptLocked.
func requireUnlocked(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAttemptLocked
	}
	return nil
}
