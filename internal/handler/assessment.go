package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyflow/studyflow/internal/assessment"
	"github.com/studyflow/studyflow/internal/i18n"
	"github.com/studyflow/studyflow/internal/llm"
	"github.com/studyflow/studyflow/internal/model"
	"github.com/studyflow/studyflow/internal/store"
)

func (h *Handler) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string           `json:"title"`
		Topic       string           `json:"topic"`
		Description string           `json:"description"`
		Difficulty  model.Difficulty `json:"difficulty"`
		Questions   json.RawMessage  `json:"questions"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	// Authored and AI payloads alike go through normalization, so legacy
	// question shapes are accepted here too.
	questions := assessment.DecodeQuestions(req.Questions)
	if req.Title == "" || len(questions) == 0 {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if err := assessment.ValidateSet(questions); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	questionsData, err := json.Marshal(questions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	record := model.Assessment{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Topic:         req.Topic,
		Description:   req.Description,
		Difficulty:    req.Difficulty,
		QuestionsData: questionsData,
		Source:        "authored",
	}
	if err := h.store.CreateAssessment(record); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":        record.ID,
		"title":     record.Title,
		"questions": questions,
	})
}

func (h *Handler) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAssessments()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []model.Assessment{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetAssessment(chi.URLParam(r, "assessmentID"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "AssessmentNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	questions := assessment.DecodeQuestions(record.QuestionsData)

	// Student-facing view: cloze blanks are masked in the question text.
	type questionView struct {
		assessment.Question
		DisplayText string `json:"display_text"`
	}
	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, questionView{Question: q, DisplayText: assessment.DisplayText(q)})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":          record.ID,
		"title":       record.Title,
		"topic":       record.Topic,
		"description": record.Description,
		"difficulty":  record.Difficulty,
		"source":      record.Source,
		"created_at":  record.CreatedAt,
		"questions":   views,
	})
}

func (h *Handler) handleExportAssessment(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportAssessment(chi.URLParam(r, "assessmentID"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "AssessmentNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, export)
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	assessmentID := chi.URLParam(r, "assessmentID")
	if _, err := h.store.GetAssessment(assessmentID); errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "AssessmentNotFound")
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	if err := h.store.CreateAttempt(id, assessmentID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	record, err := h.store.GetAttempt(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetAttempt(chi.URLParam(r, "attemptID"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "AttemptNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (h *Handler) handleUpdateAnswers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers map[string]string `json:"answers"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	attemptID := chi.URLParam(r, "attemptID")
	if _, err := h.store.GetAttempt(attemptID); errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "AttemptNotFound")
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err := h.store.UpdateAttemptAnswers(attemptID, req.Answers)
	if errors.Is(err, store.ErrAttemptLocked) {
		respondError(w, r, http.StatusConflict, "AttemptLocked")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers map[string]string `json:"answers"`
	}
	// The final answer map in the body is optional.
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	attemptID := chi.URLParam(r, "attemptID")
	record, err := h.store.GetAttempt(attemptID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "AttemptNotFound")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	assessmentRecord, err := h.store.GetAssessment(record.AssessmentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	questions := assessment.DecodeQuestions(assessmentRecord.QuestionsData)

	var answers map[string]string
	if len(record.AnswersJSON) > 0 {
		if err := json.Unmarshal(record.AnswersJSON, &answers); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if answers == nil {
		answers = map[string]string{}
	}

	attempt := assessment.RestoreAttempt(record.ID, record.AssessmentID, assessment.AttemptStatus(record.Status), answers, nil)
	if len(req.Answers) > 0 {
		if err := attempt.SetAnswers(req.Answers); errors.Is(err, assessment.ErrAttemptSubmitted) {
			respondError(w, r, http.StatusConflict, "AttemptLocked")
			return
		}
		if err := h.store.UpdateAttemptAnswers(attemptID, attempt.Answers()); err != nil && !errors.Is(err, store.ErrAttemptLocked) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if err := attempt.Submit(); errors.Is(err, assessment.ErrAttemptSubmitted) {
		respondError(w, r, http.StatusConflict, "AttemptLocked")
		return
	}
	if err := h.store.SubmitAttempt(attemptID); err != nil {
		if errors.Is(err, store.ErrAttemptLocked) {
			respondError(w, r, http.StatusConflict, "AttemptLocked")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Essay questions go to the AI grader. A grader failure never blocks
	// grading: the question scores zero earned with its full total, and the
	// feedback says to retry.
	answersFinal := attempt.Answers()
	feedback := map[string]string{}
	for _, q := range questions {
		if q.Type != assessment.TypeEssay {
			continue
		}
		answer, ok := answersFinal[q.ID]
		if !ok || answer == "" {
			continue
		}
		grade, err := h.llm.GradeEssay(r.Context(), q, answer)
		if err != nil {
			slog.Error("essay grading failed", "attempt_id", attemptID, "question_id", q.ID, "error", err)
			grade = llm.EssayGrade{Score: 0, Feedback: i18n.T(r.Context(), "EssayGradeFallback")}
		}
		if err := attempt.SetEssayScore(q.ID, grade.Score); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		feedback[q.ID] = grade.Feedback
	}

	result, err := attempt.Grade(questions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.store.GradeAttempt(attemptID, attempt.EssayScores(), feedback, result.Earned, result.Total); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"attempt_id":     attemptID,
		"earned":         result.Earned,
		"total":          result.Total,
		"percent":        result.Percent(),
		"essay_feedback": feedback,
		"message": i18n.Td(r.Context(), "AttemptScore", map[string]any{
			"Earned": result.Earned,
			"Total":  result.Total,
		}),
	})
}
