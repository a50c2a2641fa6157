package llm

import "testing"

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantStatus DecodeStatus
		wantJSON   string
	}{
		{"plain object", `{"a": 1}`, DecodeOK, `{"a": 1}`},
		{"plain array", `[1, 2, 3]`, DecodeOK, `[1, 2, 3]`},
		{"fenced with tag", "```json\n{\"a\": 1}\n```", DecodeOK, `{"a": 1}`},
		{"fenced without tag", "```\n{\"a\": 1}\n```", DecodeOK, `{"a": 1}`},
		{"object in prose", `Sure! Here you go: {"a": 1} Hope that helps.`, DecodeOK, `{"a": 1}`},
		{"array in prose", `The answer is [1, 2] as shown.`, DecodeOK, `[1, 2]`},
		{"nested braces", `Result: {"outer": {"inner": [1, 2]}} done`, DecodeOK, `{"outer": {"inner": [1, 2]}}`},
		{"braces in strings", `{"text": "a } tricky { value"}`, DecodeOK, `{"text": "a } tricky { value"}`},
		{"prose only", "I could not produce any JSON.", DecodeFallback, ""},
		{"empty", "", DecodeFailed, ""},
		{"whitespace only", "   \n\t  ", DecodeFailed, ""},
		{"unbalanced braces", `{"a": 1`, DecodeFallback, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeResponse(tt.raw)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", got.Status, tt.wantStatus)
			}
			if string(got.JSON) != tt.wantJSON {
				t.Errorf("JSON = %q, want %q", got.JSON, tt.wantJSON)
			}
		})
	}
}

func TestDecodeResponseKeepsRaw(t *testing.T) {
	raw := "Some prose the caller may want to surface as-is."
	got := DecodeResponse(raw)
	if got.Status != DecodeFallback {
		t.Fatalf("status = %v, want fallback", got.Status)
	}
	if got.Raw != raw {
		t.Errorf("raw = %q, want original input", got.Raw)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without trailing newline", "```json\n{\"a\": 1}```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences() = %q, want %q", got, tt.want)
			}
		})
	}
}
