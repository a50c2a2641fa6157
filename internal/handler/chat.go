package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyflow/studyflow/internal/assessment"
	"github.com/studyflow/studyflow/internal/chat"
	"github.com/studyflow/studyflow/internal/i18n"
	"github.com/studyflow/studyflow/internal/llm"
	"github.com/studyflow/studyflow/internal/llm/prompts"
	"github.com/studyflow/studyflow/internal/model"
	"github.com/studyflow/studyflow/internal/rank"
	"github.com/studyflow/studyflow/internal/transcript"
)

// lessonContext assembles the AI context for a question: chunk the lesson's
// transcript, rank the chunks against the question, and join the winners.
func (h *Handler) lessonContext(lesson model.Lesson, question string) string {
	_, chunks := transcript.Process([]byte(lesson.RawTranscript), h.config.MaxChunkChars, h.config.OverlapChars)
	selected := rank.Select(chunks, question, rank.MaxChunksFor(question))
	return rank.JoinContext(selected)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question   string `json:"question"`
		Detailed   bool   `json:"detailed"`
		Regenerate bool   `json:"regenerate"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Regenerate && strings.TrimSpace(req.Question) == "" {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	lessonID := chi.URLParam(r, "lessonID")
	lesson, err := h.store.GetLesson(lessonID)
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

	conv, err := h.conversation(lessonID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ask := func(ctx context.Context, question string) (string, error) {
		detailed := req.Detailed || rank.WantsDetail(question)
		return h.llm.Chat(ctx, question, h.lessonContext(lesson, question), detailed)
	}

	var answer string
	if req.Regenerate {
		answer, err = conv.Regenerate(r.Context(), ask)
	} else {
		answer, err = conv.Ask(r.Context(), req.Question, ask)
	}
	switch {
	case errors.Is(err, chat.ErrNoExchange):
		respondError(w, r, http.StatusBadRequest, "NoExchangeToRegenerate")
		return
	case errors.Is(err, chat.ErrSuperseded):
		respondError(w, r, http.StatusConflict, "InvalidRequest")
		return
	case errors.Is(err, llm.ErrUnavailable):
		slog.Error("chat request failed", "lesson_id", lessonID, "error", err)
		respondError(w, r, http.StatusBadGateway, "AIUnavailable")
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Regenerate {
		if err := h.store.DeleteTrailingAssistantMessage(lessonID); err != nil {
			slog.Error("replace chat message", "lesson_id", lessonID, "error", err)
		}
	} else {
		if _, err := h.store.AddChatMessage(model.ChatMessage{
			LessonID: lessonID,
			Role:     string(chat.RoleUser),
			Content:  req.Question,
		}); err != nil {
			slog.Error("persist chat question", "lesson_id", lessonID, "error", err)
		}
	}
	if _, err := h.store.AddChatMessage(model.ChatMessage{
		LessonID: lessonID,
		Role:     string(chat.RoleAssistant),
		Content:  answer,
	}); err != nil {
		slog.Error("persist chat answer", "lesson_id", lessonID, "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (h *Handler) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lessonID")
	if _, err := h.store.GetLesson(lessonID); errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "LessonNotFound")
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	msgs, err := h.store.GetChatMessages(lessonID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *Handler) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic        string `json:"topic"`
		NumQuestions int    `json:"num_questions"`
		QuestionType string `json:"question_type"`
		Mode         string `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = 5
	}
	if req.QuestionType == "" {
		req.QuestionType = string(assessment.TypeMultipleChoice)
	}

	lessonID := chi.URLParam(r, "lessonID")
	lesson, err := h.store.GetLesson(lessonID)
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

	// Cleaned chunk text, not the raw payload, goes to the model.
	_, chunks := transcript.Process([]byte(lesson.RawTranscript), h.config.MaxChunkChars, h.config.OverlapChars)
	source := rank.JoinContext(chunks)

	topic := req.Topic
	if topic == "" {
		topic = lesson.Title
	}

	gen, err := h.llm.GenerateAssessment(r.Context(), llm.GenerateRequest{
		Source:       source,
		Topic:        topic,
		NumQuestions: req.NumQuestions,
		QuestionType: req.QuestionType,
		Mode:         prompts.Mode(req.Mode),
	})
	if errors.Is(err, llm.ErrUnavailable) {
		slog.Error("quiz generation failed", "lesson_id", lessonID, "error", err)
		respondError(w, r, http.StatusBadGateway, "AIUnavailable")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	questionsData, err := json.Marshal(gen.Questions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	title := gen.Title
	if title == "" {
		title = topic
	}
	record := model.Assessment{
		ID:            uuid.NewString(),
		Title:         title,
		Topic:         topic,
		Description:   gen.Description,
		QuestionsData: questionsData,
		QuestionTypes: req.QuestionType,
		Source:        "generated",
	}
	if err := h.store.CreateAssessment(record); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"assessment_id": record.ID,
		"title":         record.Title,
		"questions":     gen.Questions,
		"message":       i18n.Tp(r.Context(), "QuestionsGenerated", len(gen.Questions)),
	})
}
