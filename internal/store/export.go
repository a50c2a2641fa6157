package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/studyflow/studyflow/internal/model"
)

// ExportAssessment builds an export-ready snapshot of one assessment and all
// attempts at it.
func (s *Store) ExportAssessment(assessmentID string) (*model.AssessmentExport, error) {
	a, err := s.GetAssessment(assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment %s: %w", assessmentID, err)
	}

	var questions []json.RawMessage
	if err := json.Unmarshal(a.QuestionsData, &questions); err != nil {
		// Some records wrap the array in a {questions} envelope.
		var envelope struct {
			Questions []json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(a.QuestionsData, &envelope); err != nil {
			return nil, fmt.Errorf("decode questions for %s: %w", assessmentID, err)
		}
		questions = envelope.Questions
	}

	attempts, err := s.ListAttempts(assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts for %s: %w", assessmentID, err)
	}

	export := &model.AssessmentExport{
		AssessmentID: a.ID,
		Title:        a.Title,
		Topic:        a.Topic,
		Date:         a.CreatedAt.Format(time.DateOnly),
		NumQuestions: len(questions),
	}

	for _, at := range attempts {
		result := model.AttemptResult{
			AttemptID:   at.ID,
			Status:      at.Status,
			StartedAt:   at.StartedAt,
			SubmittedAt: at.SubmittedAt,
			Answers:     map[string]string{},
		}
		if len(at.AnswersJSON) > 0 {
			if err := json.Unmarshal(at.AnswersJSON, &result.Answers); err != nil {
				return nil, fmt.Errorf("decode answers for attempt %s: %w", at.ID, err)
			}
		}
		if len(at.EssayScores) > 0 {
			if err := json.Unmarshal(at.EssayScores, &result.EssayScores); err != nil {
				return nil, fmt.Errorf("decode essay scores for attempt %s: %w", at.ID, err)
			}
		}
		if len(at.EssayFeedback) > 0 {
			if err := json.Unmarshal(at.EssayFeedback, &result.EssayFeedback); err != nil {
				return nil, fmt.Errorf("decode essay feedback for attempt %s: %w", at.ID, err)
			}
		}
		if at.Earned != nil {
			result.Earned = *at.Earned
		}
		if at.Total != nil {
			result.Total = *at.Total
			if *at.Total > 0 {
				result.Percent = result.Earned / result.Total * 100
			}
		}
		export.Attempts = append(export.Attempts, result)
	}

	return export, nil
}
