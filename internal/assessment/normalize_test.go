package assessment

import (
	"encoding/json"
	"testing"
)

func normalizeOK(t *testing.T, raw string) Question {
	t.Helper()
	q, ok := Normalize(json.RawMessage(raw))
	if !ok {
		t.Fatalf("Normalize(%s) failed", raw)
	}
	return q
}

func TestNormalizeLegacyClassificationOrder(t *testing.T) {
	t.Run("options present means multiple choice", func(t *testing.T) {
		q := normalizeOK(t, `{"question": "Pick one", "options": ["a", "b", "c"], "correctAnswer": "b"}`)
		if q.Type != TypeMultipleChoice {
			t.Fatalf("type = %s, want multiple_choice", q.Type)
		}
		if q.CorrectAnswerIndex != 1 {
			t.Errorf("correct index = %d, want 1", q.CorrectAnswerIndex)
		}
		if q.QuestionText != "Pick one" {
			t.Errorf("question text = %q", q.QuestionText)
		}
	})

	t.Run("correct answer not in options falls back to first", func(t *testing.T) {
		q := normalizeOK(t, `{"question": "Pick", "options": ["a", "b"], "correctAnswer": "zzz"}`)
		if q.CorrectAnswerIndex != 0 {
			t.Errorf("correct index = %d, want fallback 0", q.CorrectAnswerIndex)
		}
	})

	t.Run("options without correct answer falls back to first", func(t *testing.T) {
		q := normalizeOK(t, `{"question": "Pick", "options": ["a", "b"]}`)
		if q.Type != TypeMultipleChoice || q.CorrectAnswerIndex != 0 {
			t.Errorf("got type %s index %d", q.Type, q.CorrectAnswerIndex)
		}
	})

	t.Run("correct answer without options means short answer", func(t *testing.T) {
		q := normalizeOK(t, `{"question": "Q", "correctAnswer": "A"}`)
		if q.Type != TypeShortAnswer {
			t.Fatalf("type = %s, want short_answer", q.Type)
		}
		if len(q.CorrectAnswers) != 1 || q.CorrectAnswers[0] != "A" {
			t.Errorf("correct answers = %v", q.CorrectAnswers)
		}
	})

	t.Run("neither means essay", func(t *testing.T) {
		q := normalizeOK(t, `{"question": "Q"}`)
		if q.Type != TypeEssay {
			t.Fatalf("type = %s, want essay", q.Type)
		}
	})
}

func TestNormalizeLegacyDefaults(t *testing.T) {
	q := normalizeOK(t, `{"question": "Q", "correctAnswer": "A"}`)
	if q.Points != 1 {
		t.Errorf("points = %g, want default 1", q.Points)
	}
}

func TestNormalizeCanonicalPassthrough(t *testing.T) {
	raw := `{
		"id": "q7", "type": "true_false", "points": 2,
		"question_text": "Water boils at 100C at sea level.",
		"correct_answer": true
	}`
	q := normalizeOK(t, raw)
	if q.Type != TypeTrueFalse || !q.CorrectBool || q.Points != 2 || q.ID != "q7" {
		t.Errorf("canonical payload mangled: %+v", q)
	}
}

func TestNormalizeCanonicalCloze(t *testing.T) {
	q := normalizeOK(t, `{"id": "c1", "type": "cloze", "question_text": "[x] and [y]"}`)
	if q.Points != 2 {
		t.Errorf("cloze default points = %g, want blank count 2", q.Points)
	}

	authored := normalizeOK(t, `{"id": "c2", "type": "cloze", "points": 5, "question_text": "[x] and [y]"}`)
	if authored.Points != 5 {
		t.Errorf("authored points overridden: %g", authored.Points)
	}
}

func TestNormalizeCanonicalPassage(t *testing.T) {
	raw := `{
		"id": "p1", "type": "passage", "points": 5,
		"passage_title": "T", "passage_text": "body",
		"questions": [
			{"id": "s0", "question_type": "multiple_choice", "question_text": "?", "options": ["a","b"], "correct_answer": "1", "points": 2},
			{"id": "s1", "question_type": "short_answer", "question_text": "?", "correct_answer": "x"}
		]
	}`
	q := normalizeOK(t, raw)
	if q.Type != TypePassage || len(q.SubQuestions) != 2 {
		t.Fatalf("passage mangled: %+v", q)
	}
	if q.SubQuestions[1].Points != 1 {
		t.Errorf("sub-question default points = %g, want 1", q.SubQuestions[1].Points)
	}
	if q.NominalPoints() != 3 {
		t.Errorf("nominal points = %g, want 3 (sum of sub-questions)", q.NominalPoints())
	}
}

func TestNormalizePassageAuthoredAnswerShapes(t *testing.T) {
	// Authoring tools emit the option index as a JSON number and true/false
	// answers as booleans; both must survive normalization.
	raw := `{
		"id": "p2", "type": "passage",
		"passage_text": "body",
		"questions": [
			{"id": "s0", "question_type": "multiple_choice", "question_text": "?", "options": ["first","second"], "correct_answer": 0, "points": 2},
			{"id": "s1", "question_type": "true_false", "question_text": "?", "correct_answer": true, "points": 1},
			{"id": "s2", "question_type": "short_answer", "question_text": "?", "correct_answer": "x", "points": 1}
		]
	}`
	q := normalizeOK(t, raw)
	if q.Type != TypePassage || len(q.SubQuestions) != 3 {
		t.Fatalf("passage mangled: %+v", q)
	}
	if got := q.SubQuestions[0].CorrectAnswer; got != "0" {
		t.Errorf("numeric correct_answer = %q, want %q", got, "0")
	}
	if got := q.SubQuestions[1].CorrectAnswer; got != "true" {
		t.Errorf("boolean correct_answer = %q, want %q", got, "true")
	}
	if got := q.SubQuestions[2].CorrectAnswer; got != "x" {
		t.Errorf("string correct_answer = %q, want %q", got, "x")
	}

	answers := map[string]string{
		AnswerKey("p2", 0): "first",
		AnswerKey("p2", 1): "true",
		AnswerKey("p2", 2): "x",
	}
	result := Score([]Question{q}, answers, nil)
	if result.Earned != 4 || result.Total != 4 {
		t.Errorf("score = %g/%g, want 4/4", result.Earned, result.Total)
	}
}

func TestNormalizeLegacyStringCorrectAnswerUnderCanonicalKey(t *testing.T) {
	// Some exports use the canonical snake_case key with a string value.
	q := normalizeOK(t, `{"question": "Q", "correct_answer": "A"}`)
	if q.Type != TypeShortAnswer {
		t.Fatalf("type = %s, want short_answer", q.Type)
	}
	if len(q.CorrectAnswers) != 1 || q.CorrectAnswers[0] != "A" {
		t.Errorf("correct answers = %v", q.CorrectAnswers)
	}
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	if _, ok := Normalize(json.RawMessage(`{"options": ["a"]}`)); ok {
		t.Error("record with no question text should be rejected")
	}
	if _, ok := Normalize(json.RawMessage(`not json`)); ok {
		t.Error("malformed JSON should be rejected")
	}
}

func TestDecodeQuestions(t *testing.T) {
	raw := `[
		{"question": "Legacy MC", "options": ["a","b"], "correctAnswer": "a"},
		{"question": "Legacy SA", "correctAnswer": "x"},
		{"garbage": true},
		{"id": "e1", "type": "essay", "points": 10, "question_text": "Discuss."}
	]`
	qs := DecodeQuestions([]byte(raw))
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions (bad record dropped), got %d", len(qs))
	}
	if qs[0].Type != TypeMultipleChoice || qs[1].Type != TypeShortAnswer || qs[2].Type != TypeEssay {
		t.Errorf("unexpected types: %s %s %s", qs[0].Type, qs[1].Type, qs[2].Type)
	}
	if qs[0].ID == "" || qs[1].ID == "" {
		t.Error("legacy records should receive generated ids")
	}
	if qs[2].ID != "e1" {
		t.Errorf("canonical id overwritten: %q", qs[2].ID)
	}

	if got := DecodeQuestions([]byte(`{"not": "an array"}`)); got != nil {
		t.Errorf("non-array payload should decode to nil, got %v", got)
	}
}
