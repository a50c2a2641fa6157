// Package prompts builds the prompt text sent to the model. Templates live in
// embedded files so wording changes never touch Go code.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Mode selects the register of generated assessments.
type Mode string

const (
	// ModeQuiz generates conceptual-understanding questions.
	ModeQuiz Mode = "quiz"
	// ModeExam generates rigorous problem-solving questions.
	ModeExam Mode = "exam"
)

var validModes = map[Mode]bool{
	ModeQuiz: true,
	ModeExam: true,
}

// IsValidMode checks if an assessment mode name is valid.
func IsValidMode(m string) bool {
	return validModes[Mode(m)]
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

func load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		names := []string{"assessment_quiz", "assessment_exam", "chat", "essay_grade"}
		for _, name := range names {
			content, err := templateFS.ReadFile("templates/" + name + ".txt")
			if err != nil {
				loadErr = errors.New("read prompt template " + name + ": " + err.Error())
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = errors.New("parse prompt template " + name + ": " + err.Error())
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

func execute(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// AssessmentData holds template data for assessment generation prompts.
type AssessmentData struct {
	Topic        string
	NumQuestions int
	QuestionType string
	Source       string
}

// BuildAssessmentPrompt builds a quiz or exam generation prompt.
func BuildAssessmentPrompt(mode Mode, data AssessmentData) (string, error) {
	name := "assessment_quiz"
	if mode == ModeExam {
		name = "assessment_exam"
	}
	return execute(name, data)
}

// ChatData holds template data for context-grounded chat prompts.
type ChatData struct {
	Context  string
	Question string
	Detailed bool
}

// BuildChatPrompt builds the context-grounded chat prompt. Unless the user
// asked for a detailed answer, the prompt instructs the model to stay concise.
func BuildChatPrompt(data ChatData) (string, error) {
	data.Question = SanitizeUserText(data.Question)
	return execute("chat", data)
}

// EssayGradeData holds template data for essay grading prompts.
type EssayGradeData struct {
	Question      string
	ModelSolution string
	Rubric        string
	Answer        string
}

// BuildEssayGradePrompt builds the essay grading prompt.
func BuildEssayGradePrompt(data EssayGradeData) (string, error) {
	data.Answer = SanitizeUserText(data.Answer)
	if data.Answer == "" {
		data.Answer = "[No answer provided]"
	}
	return execute("essay_grade", data)
}

var (
	answerTagRegex = regexp.MustCompile(`(?i)</?\s*(student-answer|system-instructions)\b[^>]*>`)
)

const maxUserTextRunes = 10000

// SanitizeUserText strips prompt-injection markers from user-supplied text
// and bounds its length.
func SanitizeUserText(text string) string {
	text = answerTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > maxUserTextRunes {
		runes := []rune(text)
		text = string(runes[:maxUserTextRunes]) + "\n\n[Truncated due to length]"
	}
	return text
}
