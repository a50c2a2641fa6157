// Package handler exposes the platform as a JSON API.
package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyflow/studyflow/internal/chat"
	"github.com/studyflow/studyflow/internal/i18n"
	"github.com/studyflow/studyflow/internal/llm"
	"github.com/studyflow/studyflow/internal/model"
	"github.com/studyflow/studyflow/internal/store"
	"github.com/studyflow/studyflow/internal/transcript"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	llm    *llm.Client
	config model.ServerConfig

	convMu        sync.Mutex
	conversations map[string]*chat.Conversation
}

// New creates a new Handler.
func New(s *store.Store, l *llm.Client, cfg model.ServerConfig) (*Handler, error) {
	if cfg.MaxChunkChars == 0 {
		cfg.MaxChunkChars = transcript.DefaultMaxChars
	}
	if cfg.OverlapChars == 0 {
		cfg.OverlapChars = transcript.DefaultOverlapChars
	}
	return &Handler{
		store:         s,
		llm:           l,
		config:        cfg,
		conversations: map[string]*chat.Conversation{},
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/lessons", h.handleCreateLesson)
	r.Get("/lessons", h.handleListLessons)
	r.Get("/lessons/{lessonID}", h.handleGetLesson)
	r.Put("/lessons/{lessonID}/transcript", h.handleUpdateTranscript)
	r.Put("/lessons/{lessonID}/notes", h.handleUpdateNotes)
	r.Put("/lessons/{lessonID}/completed", h.handleSetCompleted)
	r.Get("/lessons/{lessonID}/paragraphs", h.handleParagraphs)
	r.Post("/lessons/{lessonID}/chat", h.handleChat)
	r.Get("/lessons/{lessonID}/chat", h.handleChatHistory)
	r.Post("/lessons/{lessonID}/quiz", h.handleGenerateQuiz)

	r.Post("/assessments", h.handleCreateAssessment)
	r.Get("/assessments", h.handleListAssessments)
	r.Get("/assessments/{assessmentID}", h.handleGetAssessment)
	r.Get("/assessments/{assessmentID}/export", h.handleExportAssessment)
	r.Post("/assessments/{assessmentID}/attempts", h.handleStartAttempt)

	r.Get("/attempts/{attemptID}", h.handleGetAttempt)
	r.Put("/attempts/{attemptID}/answers", h.handleUpdateAnswers)
	r.Post("/attempts/{attemptID}/submit", h.handleSubmitAttempt)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// respondError sends a localized error message under a stable JSON shape.
func respondError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	respondJSON(w, status, map[string]string{"error": i18n.T(r.Context(), msgID)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return false
	}
	return true
}

func (h *Handler) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Course  string `json:"course"`
		Title   string `json:"title"`
		VideoID string `json:"video_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	lesson := model.Lesson{
		ID:      uuid.NewString(),
		Course:  req.Course,
		Title:   req.Title,
		VideoID: req.VideoID,
	}
	if err := h.store.CreateLesson(lesson); err != nil {
		slog.Error("create lesson", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	created, err := h.store.GetLesson(lesson.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.store.ListLessons(r.URL.Query().Get("course"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if lessons == nil {
		lessons = []model.Lesson{}
	}
	// The raw transcript can be large; the list view omits it.
	for i := range lessons {
		lessons[i].RawTranscript = ""
	}
	respondJSON(w, http.StatusOK, lessons)
}

func (h *Handler) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.store.GetLesson(chi.URLParam(r, "lessonID"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "LessonNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, lesson)
}

// handleUpdateTranscript stores the uploaded transcript payload exactly as
// received. Malformed payloads are accepted; parsing degrades on read.
func (h *Handler) handleUpdateTranscript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript json.RawMessage `json:"transcript"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.store.UpdateLessonTranscript(chi.URLParam(r, "lessonID"), string(req.Transcript))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "LessonNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.store.UpdateLessonNotes(chi.URLParam(r, "lessonID"), req.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "LessonNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetCompleted(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Completed bool `json:"completed"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.store.SetLessonCompleted(chi.URLParam(r, "lessonID"), req.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "LessonNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// paragraphView is the reading-view shape: raw paragraph text with a display
// timestamp.
type paragraphView struct {
	StartMs     int64  `json:"start_ms"`
	EndMs       int64  `json:"end_ms"`
	Text        string `json:"text"`
	DisplayTime string `json:"display_time"`
}

func (h *Handler) handleParagraphs(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.store.GetLesson(chi.URLParam(r, "lessonID"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "LessonNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if lesson.RawTranscript == "" {
		respondError(w, r, http.StatusNotFound, "TranscriptMissing")
		return
	}

	segments, _ := transcript.Process([]byte(lesson.RawTranscript), h.config.MaxChunkChars, h.config.OverlapChars)
	paragraphs := transcript.Paragraphs(segments)

	views := make([]paragraphView, 0, len(paragraphs))
	for _, p := range paragraphs {
		views = append(views, paragraphView{
			StartMs:     p.StartMs,
			EndMs:       p.EndMs,
			Text:        p.Text,
			DisplayTime: transcript.FormatMs(p.StartMs),
		})
	}
	respondJSON(w, http.StatusOK, views)
}

// conversation returns the in-memory conversation for a lesson, seeding it
// from stored history on first use.
func (h *Handler) conversation(lessonID string) (*chat.Conversation, error) {
	h.convMu.Lock()
	defer h.convMu.Unlock()
	if c, ok := h.conversations[lessonID]; ok {
		return c, nil
	}

	stored, err := h.store.GetChatMessages(lessonID)
	if err != nil {
		return nil, err
	}
	history := make([]chat.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, chat.Message{
			Role:      chat.Role(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	c := chat.NewConversation(history)
	h.conversations[lessonID] = c
	return c, nil
}
