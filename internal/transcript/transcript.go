// Package transcript turns raw video transcripts into canonical time-bounded
// segments, display paragraphs, and size-bounded chunks for AI context assembly.
package transcript

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChars is the default chunk size limit.
	DefaultMaxChars = 3000
	// DefaultOverlapChars is the default trailing overlap carried between chunks.
	DefaultOverlapChars = 400

	// mergeGapMs is the maximum gap between adjacent segments that still merges them.
	mergeGapMs = 1000
	// mergeMaxChars caps the combined text length of a merged segment.
	mergeMaxChars = 1000
	// paragraphGapMs is the gap above which a new display paragraph starts.
	paragraphGapMs = 1600
)

// Segment is a time-bounded unit of transcript text, the finest granularity
// the pipeline operates on.
type Segment struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Chunk is a size-bounded concatenation of segment text used to fit content
// into an AI context budget.
type Chunk struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Paragraph is a display-facing grouping of segments.
type Paragraph struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// RawEvent is one timed caption event as delivered by transcript sources.
type RawEvent struct {
	TStartMs    int64         `json:"tStartMs"`
	DDurationMs int64         `json:"dDurationMs"`
	Segs        []RawFragment `json:"segs"`
}

// RawFragment is a single text fragment inside a raw event.
type RawFragment struct {
	UTF8 string `json:"utf8"`
}

// NormalizeEvents converts raw timed events into an ordered segment list.
// Events with no usable text are skipped; transcript sources are noisy and the
// pipeline degrades to fewer segments rather than failing.
func NormalizeEvents(events []RawEvent) []Segment {
	segs := make([]Segment, 0, len(events))
	for _, ev := range events {
		parts := make([]string, 0, len(ev.Segs))
		for _, f := range ev.Segs {
			parts = append(parts, f.UTF8)
		}
		text := collapseSpaces(strings.Join(parts, " "))
		if text == "" {
			continue
		}
		start := ev.TStartMs
		if start < 0 {
			start = 0
		}
		dur := ev.DDurationMs
		if dur < 0 {
			dur = 0
		}
		segs = append(segs, Segment{StartMs: start, EndMs: start + dur, Text: text})
	}
	return MergeAdjacent(segs, mergeGapMs)
}

// MergeAdjacent merges segments whose gap is at most maxGapMs, as long as the
// combined text stays under the merge length cap. Input order is not assumed;
// the result is sorted by start time.
func MergeAdjacent(segs []Segment, maxGapMs int64) []Segment {
	if len(segs) == 0 {
		return nil
	}
	sorted := make([]Segment, len(segs))
	copy(sorted, segs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })

	out := []Segment{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &out[len(out)-1]
		if cur.StartMs-last.EndMs <= maxGapMs && runeLen(last.Text)+runeLen(cur.Text) < mergeMaxChars {
			if cur.EndMs > last.EndMs {
				last.EndMs = cur.EndMs
			}
			last.Text = collapseSpaces(last.Text + " " + cur.Text)
		} else {
			out = append(out, cur)
		}
	}
	return out
}

var (
	bracketNoiseRe = regexp.MustCompile(`(?i)\[(music|applause|laughter|cheering)[^\]]*\]`)
	parenNoiseRe   = regexp.MustCompile(`(?i)\((music|applause|laughs|crosstalk)[^\)]*\)`)
	fillerRe       = regexp.MustCompile(`(?i)\b(uh|um|ah|you know|like)\b`)
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
	spaceRunRe     = regexp.MustCompile(`\s+`)
)

// Clean strips non-speech markers and filler words and collapses whitespace.
// It is applied before chunking but never before paragraph formatting:
// paragraphs keep the raw readable text, chunks favor density.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = bracketNoiseRe.ReplaceAllString(s, "")
	s = parenNoiseRe.ReplaceAllString(s, "")
	s = fillerRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

// ChunkSegments packs cleaned segment text greedily into chunks of at most
// maxChars characters. When a chunk closes, the next one starts with the last
// overlapChars characters of the closed chunk as a continuity overlap.
// A single segment longer than maxChars is split at sentence boundaries first,
// so no chunk ever exceeds the limit. All limits count characters (runes),
// not bytes, so multibyte transcripts pack the same as ASCII ones.
func ChunkSegments(segs []Segment, maxChars, overlapChars int) []Chunk {
	if maxChars <= 0 {
		panic(fmt.Sprintf("transcript: maxChars must be positive, got %d", maxChars))
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		panic(fmt.Sprintf("transcript: overlapChars must be in [0, maxChars), got %d", overlapChars))
	}

	var chunks []Chunk
	var buffer string
	var bufferStart, bufferEnd int64
	if len(segs) > 0 {
		bufferStart = segs[0].StartMs
		bufferEnd = bufferStart
	}

	appendText := func(s Segment, text string) {
		if buffer == "" {
			bufferStart = s.StartMs
			buffer = text
			bufferEnd = s.EndMs
			return
		}
		if runeLen(buffer)+1+runeLen(text) > maxChars {
			bufferEnd = s.EndMs
			chunks = append(chunks, Chunk{StartMs: bufferStart, EndMs: bufferEnd, Text: strings.TrimSpace(buffer)})
			overlap := tailRunes(buffer, overlapChars)
			// Keep the hard size bound even when the incoming text nearly
			// fills a chunk on its own.
			if runeLen(overlap)+1+runeLen(text) > maxChars {
				overlap = tailRunes(overlap, maxChars-runeLen(text)-1)
			}
			buffer = strings.TrimSpace(overlap + " " + text)
			bufferStart = s.StartMs
			bufferEnd = s.EndMs
		} else {
			buffer += " " + text
			bufferEnd = s.EndMs
		}
	}

	for _, s := range segs {
		t := Clean(s.Text)
		if t == "" {
			continue
		}
		if runeLen(t) > maxChars {
			for _, piece := range splitSentences(t, maxChars) {
				appendText(s, piece)
			}
			continue
		}
		appendText(s, t)
	}

	if strings.TrimSpace(buffer) != "" {
		chunks = append(chunks, Chunk{StartMs: bufferStart, EndMs: bufferEnd, Text: strings.TrimSpace(buffer)})
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := len(s)
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// splitSentences breaks text at sentence boundaries into pieces no longer than
// limit. A single sentence longer than the limit is hard-split.
func splitSentences(text string, limit int) []string {
	marked := sentenceEndRe.ReplaceAllString(text, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	var pieces []string
	var cur string
	flush := func() {
		if strings.TrimSpace(cur) != "" {
			pieces = append(pieces, strings.TrimSpace(cur))
		}
		cur = ""
	}
	for _, sent := range sentences {
		sent = strings.TrimSpace(sent)
		if sent == "" {
			continue
		}
		for runeLen(sent) > limit {
			flush()
			r := []rune(sent)
			pieces = append(pieces, string(r[:limit]))
			sent = strings.TrimSpace(string(r[limit:]))
		}
		if sent == "" {
			continue
		}
		if cur != "" && runeLen(cur)+1+runeLen(sent) > limit {
			flush()
		}
		if cur != "" {
			cur += " "
		}
		cur += sent
	}
	flush()
	return pieces
}

// Paragraphs groups segments into display paragraphs. Segments separated by a
// gap larger than the paragraph threshold start a new paragraph; the first
// character of each paragraph is capitalized. Raw text is preserved (no Clean).
func Paragraphs(segs []Segment) []Paragraph {
	if len(segs) == 0 {
		return nil
	}

	var paras []Paragraph
	var curText string
	curStart := segs[0].StartMs
	curEnd := segs[0].EndMs

	push := func() {
		text := collapseSpaces(curText)
		if text == "" {
			return
		}
		paras = append(paras, Paragraph{StartMs: curStart, EndMs: curEnd, Text: capitalize(text)})
	}

	for _, s := range segs {
		if curText == "" {
			curStart = s.StartMs
			curEnd = s.EndMs
			curText = s.Text
			continue
		}
		if s.StartMs-curEnd > paragraphGapMs {
			push()
			curStart = s.StartMs
			curEnd = s.EndMs
			curText = s.Text
		} else {
			curText = strings.TrimSpace(curText + " " + s.Text)
			if s.EndMs > curEnd {
				curEnd = s.EndMs
			}
		}
	}
	push()
	return paras
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// FormatMs renders a millisecond offset as m:ss, or h:mm:ss past one hour.
func FormatMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	hh := s / 3600
	mm := (s % 3600) / 60
	ss := s % 60
	if hh > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hh, mm, ss)
	}
	return fmt.Sprintf("%d:%02d", mm, ss)
}

// Source is the decoded form of a raw transcript payload.
type Source struct {
	Segments []Segment
	// Text is set when the payload carried a plain transcript string
	// instead of timed segments.
	Text string
}

// looseSegment accepts the field aliases seen across transcript exports.
type looseSegment struct {
	StartMs     *int64  `json:"startMs"`
	TStartMs    *int64  `json:"tStartMs"`
	EndMs       *int64  `json:"endMs"`
	DurationMs  *int64  `json:"durationMs"`
	DDurationMs *int64  `json:"dDurationMs"`
	Text        *string `json:"text"`
	UTF8        *string `json:"utf8"`
}

type rawEnvelope struct {
	Events     []RawEvent     `json:"events"`
	Segments   []looseSegment `json:"segments"`
	Segs       []looseSegment `json:"segs"`
	Transcript *string        `json:"transcript"`
}

// Decode accepts the raw transcript shapes the platform must take as-is:
// {"events": [...]}, {"transcript": "..."}, {"segments": [...]} with loose
// field aliases, or a bare JSON string. Unknown shapes decode to an empty
// source rather than an error.
func Decode(raw []byte) (Source, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Source{}, nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return Source{Text: plain}, nil
	}

	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Source{}, fmt.Errorf("decode transcript: %w", err)
	}

	switch {
	case len(env.Events) > 0:
		return Source{Segments: NormalizeEvents(env.Events)}, nil
	case len(env.Segments) > 0:
		return Source{Segments: normalizeLoose(env.Segments)}, nil
	case len(env.Segs) > 0:
		return Source{Segments: normalizeLoose(env.Segs)}, nil
	case env.Transcript != nil:
		return Source{Text: *env.Transcript}, nil
	}
	return Source{}, nil
}

func normalizeLoose(list []looseSegment) []Segment {
	segs := make([]Segment, 0, len(list))
	for _, it := range list {
		var start int64
		switch {
		case it.StartMs != nil:
			start = *it.StartMs
		case it.TStartMs != nil:
			start = *it.TStartMs
		}
		end := start
		switch {
		case it.EndMs != nil:
			end = *it.EndMs
		case it.DurationMs != nil:
			end = start + *it.DurationMs
		case it.DDurationMs != nil:
			end = start + *it.DDurationMs
		}
		if end < start {
			end = start
		}
		var text string
		switch {
		case it.Text != nil:
			text = *it.Text
		case it.UTF8 != nil:
			text = *it.UTF8
		}
		text = collapseSpaces(text)
		if text == "" {
			continue
		}
		segs = append(segs, Segment{StartMs: start, EndMs: end, Text: text})
	}
	return MergeAdjacent(segs, mergeGapMs)
}

// Process is the pipeline entry point: it decodes a raw transcript payload and
// produces both the canonical segment list and the AI-context chunks.
// A plain-string payload becomes a single zero-time segment and chunk.
func Process(raw []byte, maxChars, overlapChars int) ([]Segment, []Chunk) {
	src, err := Decode(raw)
	if err != nil {
		return nil, nil
	}
	if src.Text != "" {
		text := Clean(src.Text)
		if text == "" {
			return nil, nil
		}
		seg := Segment{StartMs: 0, EndMs: 0, Text: text}
		if runeLen(text) > maxChars {
			return []Segment{seg}, ChunkSegments([]Segment{seg}, maxChars, overlapChars)
		}
		return []Segment{seg}, []Chunk{{StartMs: 0, EndMs: 0, Text: text}}
	}
	if len(src.Segments) == 0 {
		return nil, nil
	}
	return src.Segments, ChunkSegments(src.Segments, maxChars, overlapChars)
}
