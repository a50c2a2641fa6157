package llm

import (
	"encoding/json"
	"strings"
)

// DecodeStatus classifies the outcome of a best-effort decode of a model
// response.
type DecodeStatus int

const (
	// DecodeOK means the payload parsed as JSON, possibly after stripping
	// markdown fences or extracting an embedded object.
	DecodeOK DecodeStatus = iota
	// DecodeFallback means no JSON could be recovered but the raw text is
	// usable as free-form output.
	DecodeFallback
	// DecodeFailed means the response was empty or unusable.
	DecodeFailed
)

// DecodeOutcome is the typed result of DecodeResponse. Callers distinguish
// "used the parsed object" from "used the raw text" from "gave up" without
// nested error handling.
type DecodeOutcome struct {
	Status DecodeStatus
	// JSON holds the recovered JSON payload when Status is DecodeOK.
	JSON json.RawMessage
	// Raw is the fence-stripped response text, set unless Status is DecodeFailed.
	Raw string
}

// DecodeResponse recovers structure from a model response: it strips markdown
// code fences, then tries the whole payload as JSON, then the outermost
// embedded object or array when the JSON is wrapped in explanatory prose.
// Models routinely decorate JSON output; none of that may crash a caller.
func DecodeResponse(raw string) DecodeOutcome {
	text := StripFences(raw)
	if text == "" {
		return DecodeOutcome{Status: DecodeFailed}
	}

	if json.Valid([]byte(text)) {
		return DecodeOutcome{Status: DecodeOK, JSON: json.RawMessage(text), Raw: text}
	}

	if embedded := extractEmbedded(text); embedded != "" {
		return DecodeOutcome{Status: DecodeOK, JSON: json.RawMessage(embedded), Raw: text}
	}

	return DecodeOutcome{Status: DecodeFallback, Raw: text}
}

// StripFences removes a wrapping markdown code fence, with or without a
// language tag, and trims whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractEmbedded finds the outermost balanced {...} or [...] span that
// parses as JSON, or returns empty.
func extractEmbedded(text string) string {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(text, pair[0])
		end := strings.LastIndexByte(text, pair[1])
		if start < 0 || end <= start {
			continue
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}
	return ""
}
