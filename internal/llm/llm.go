// Package llm talks to an OpenAI-compatible model endpoint. The model is an
// opaque collaborator: this package assembles prompts, issues calls, and
// interprets responses defensively; it never lets a malformed response crash
// the pipeline.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyflow/studyflow/internal/assessment"
	"github.com/studyflow/studyflow/internal/llm/prompts"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnavailable wraps transport-level failures of the model endpoint so
// callers can offer a retry instead of treating them as data errors.
var ErrUnavailable = fmt.Errorf("model endpoint unavailable")

// sourceTruncateLimit bounds the source text sent for assessment generation,
// to stay clear of token errors before the model even sees the prompt.
const sourceTruncateLimit = 50000

// EssayGrade is the model's assessment of one essay answer.
type EssayGrade struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// GeneratedAssessment is a normalized AI-generated assessment.
type GeneratedAssessment struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Questions   []assessment.Question `json:"questions"`
}

// GenerateRequest describes an assessment generation call.
type GenerateRequest struct {
	Source       string
	Topic        string
	NumQuestions int
	QuestionType string
	Mode         prompts.Mode
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new model client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the endpoint responds at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Chat answers a user question grounded in the supplied context text (the
// relevance-selected chunks, already joined). Unless detailed is set the
// prompt asks for a concise answer.
func (c *Client) Chat(ctx context.Context, question, contextText string, detailed bool) (string, error) {
	prompt, err := prompts.BuildChatPrompt(prompts.ChatData{
		Context:  contextText,
		Question: question,
		Detailed: detailed,
	})
	if err != nil {
		return "", fmt.Errorf("build chat prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateAssessment asks the model for a quiz or exam over the source text
// and normalizes every returned question into the canonical variant set.
func (c *Client) GenerateAssessment(ctx context.Context, req GenerateRequest) (*GeneratedAssessment, error) {
	source := req.Source
	if len(source) > sourceTruncateLimit {
		source = source[:sourceTruncateLimit] + "...(truncated)"
	}
	mode := req.Mode
	if !prompts.IsValidMode(string(mode)) {
		mode = prompts.ModeQuiz
	}

	prompt, err := prompts.BuildAssessmentPrompt(mode, prompts.AssessmentData{
		Topic:        req.Topic,
		NumQuestions: req.NumQuestions,
		QuestionType: req.QuestionType,
		Source:       source,
	})
	if err != nil {
		return nil, fmt.Errorf("build assessment prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrUnavailable)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("assessment generation response", "length", len(raw))

	return ParseGeneratedAssessment(raw)
}

// ParseGeneratedAssessment decodes an assessment generation response. It
// tolerates fences and prose wrapping, and accepts both the {title,
// description, questions} envelope and a bare question array.
func ParseGeneratedAssessment(raw string) (*GeneratedAssessment, error) {
	outcome := DecodeResponse(raw)
	if outcome.Status != DecodeOK {
		return nil, fmt.Errorf("parse generated assessment: no JSON in response")
	}

	var envelope struct {
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Questions   []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(outcome.JSON, &envelope); err != nil || len(envelope.Questions) == 0 {
		// Some responses are a bare array of questions.
		var items []json.RawMessage
		if err := json.Unmarshal(outcome.JSON, &items); err != nil || len(items) == 0 {
			return nil, fmt.Errorf("parse generated assessment: unrecognized shape")
		}
		envelope.Questions = items
	}

	gen := &GeneratedAssessment{
		Title:       envelope.Title,
		Description: envelope.Description,
	}
	for i, item := range envelope.Questions {
		q, ok := assessment.Normalize(item)
		if !ok {
			slog.Warn("dropping unparseable generated question", "index", i)
			continue
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("gen_q%d", i+1)
		}
		gen.Questions = append(gen.Questions, q)
	}
	if len(gen.Questions) == 0 {
		return nil, fmt.Errorf("parse generated assessment: no usable questions")
	}
	return gen, nil
}

// GradeEssay asks the model to grade one essay answer against the question's
// model solution and rubric. A transport failure is returned as an error; an
// unparseable response degrades to a zero-score sentinel so scoring can
// proceed.
func (c *Client) GradeEssay(ctx context.Context, q assessment.Question, answer string) (EssayGrade, error) {
	rubric := "Grade based on logical correctness, completeness, and clarity."
	if len(q.RubricCriteria) > 0 {
		if b, err := json.Marshal(q.RubricCriteria); err == nil {
			rubric = string(b)
		}
	}

	prompt, err := prompts.BuildEssayGradePrompt(prompts.EssayGradeData{
		Question:      q.QuestionText,
		ModelSolution: q.ModelSolution,
		Rubric:        rubric,
		Answer:        answer,
	})
	if err != nil {
		return EssayGrade{}, fmt.Errorf("build essay grading prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return EssayGrade{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return EssayGrade{}, fmt.Errorf("%w: no choices returned", ErrUnavailable)
	}

	return ParseEssayGrade(resp.Choices[0].Message.Content), nil
}

// ParseEssayGrade decodes an essay grading response, falling back to a
// zero-score sentinel when no usable JSON can be recovered.
func ParseEssayGrade(raw string) EssayGrade {
	outcome := DecodeResponse(raw)
	if outcome.Status == DecodeOK {
		var grade EssayGrade
		if err := json.Unmarshal(outcome.JSON, &grade); err == nil {
			if grade.Score < 0 {
				grade.Score = 0
			}
			if grade.Score > 100 {
				grade.Score = 100
			}
			return grade
		}
	}
	slog.Warn("essay grading response unparseable, using sentinel", "raw_len", len(raw))
	return EssayGrade{Score: 0, Feedback: "Error grading submission. Please try again."}
}
