package transcript

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeEvents(t *testing.T) {
	tests := []struct {
		name   string
		events []RawEvent
		want   []Segment
	}{
		{"empty", nil, nil},
		{
			"single event joins fragments",
			[]RawEvent{
				{TStartMs: 0, DDurationMs: 2000, Segs: []RawFragment{{UTF8: "hello"}, {UTF8: "world"}}},
			},
			[]Segment{{StartMs: 0, EndMs: 2000, Text: "hello world"}},
		},
		{
			"empty fragments skipped",
			[]RawEvent{
				{TStartMs: 0, DDurationMs: 1000, Segs: []RawFragment{{UTF8: "  "}}},
				{TStartMs: 5000, DDurationMs: 1000, Segs: []RawFragment{{UTF8: "kept"}}},
			},
			[]Segment{{StartMs: 5000, EndMs: 6000, Text: "kept"}},
		},
		{
			"missing duration yields zero-length segment",
			[]RawEvent{
				{TStartMs: 3000, Segs: []RawFragment{{UTF8: "text"}}},
			},
			[]Segment{{StartMs: 3000, EndMs: 3000, Text: "text"}},
		},
		{
			"close events merge",
			[]RawEvent{
				{TStartMs: 0, DDurationMs: 1000, Segs: []RawFragment{{UTF8: "one"}}},
				{TStartMs: 1500, DDurationMs: 1000, Segs: []RawFragment{{UTF8: "two"}}},
			},
			[]Segment{{StartMs: 0, EndMs: 2500, Text: "one two"}},
		},
		{
			"distant events stay apart",
			[]RawEvent{
				{TStartMs: 0, DDurationMs: 1000, Segs: []RawFragment{{UTF8: "one"}}},
				{TStartMs: 5000, DDurationMs: 1000, Segs: []RawFragment{{UTF8: "two"}}},
			},
			[]Segment{
				{StartMs: 0, EndMs: 1000, Text: "one"},
				{StartMs: 5000, EndMs: 6000, Text: "two"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeEvents(tt.events)
			assertSegments(t, got, tt.want)
		})
	}
}

func TestMergeAdjacentLengthCap(t *testing.T) {
	long := strings.Repeat("a", 600)
	segs := []Segment{
		{StartMs: 0, EndMs: 1000, Text: long},
		{StartMs: 1500, EndMs: 2500, Text: long},
	}
	got := MergeAdjacent(segs, 1000)
	if len(got) != 2 {
		t.Fatalf("expected merge to be blocked by length cap, got %d segments", len(got))
	}
}

func TestMergeAdjacentCountsCharacters(t *testing.T) {
	// 400 Cyrillic runes are 800 bytes of UTF-8; the cap counts characters,
	// so two of these still merge.
	long := strings.Repeat("ж", 400)
	segs := []Segment{
		{StartMs: 0, EndMs: 1000, Text: long},
		{StartMs: 1500, EndMs: 2500, Text: long},
	}
	got := MergeAdjacent(segs, 1000)
	if len(got) != 1 {
		t.Fatalf("expected multibyte segments under the character cap to merge, got %d segments", len(got))
	}
}

func TestMergeAdjacentSortsInput(t *testing.T) {
	segs := []Segment{
		{StartMs: 5000, EndMs: 6000, Text: "later"},
		{StartMs: 0, EndMs: 1000, Text: "earlier"},
	}
	got := MergeAdjacent(segs, 1000)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if got[0].Text != "earlier" {
		t.Errorf("expected earliest segment first, got %q", got[0].Text)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"bracketed noise", "hello [music] world", "hello world"},
		{"bracketed noise with detail", "intro [Music playing softly] outro", "intro outro"},
		{"parenthesized noise", "so (laughs) anyway", "so anyway"},
		{"filler words", "um so this is uh the idea you know", "so this is the idea"},
		{"whitespace collapsed", "a    b\t\tc", "a b c"},
		{"plain text untouched", "plain sentence here", "plain sentence here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChunkSegmentsBounds(t *testing.T) {
	// Enough text to force several chunk closes.
	var segs []Segment
	for i := 0; i < 40; i++ {
		segs = append(segs, Segment{
			StartMs: int64(i * 2000),
			EndMs:   int64(i*2000 + 1500),
			Text:    strings.Repeat("word ", 60), // ~300 chars per segment
		})
	}

	maxChars, overlap := 1000, 200
	chunks := ChunkSegments(segs, maxChars, overlap)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > maxChars {
			t.Errorf("chunk %d length %d exceeds max %d", i, len(c.Text), maxChars)
		}
		if c.Text == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if c.EndMs < c.StartMs {
			t.Errorf("chunk %d has end %d before start %d", i, c.EndMs, c.StartMs)
		}
	}
}

func TestChunkSegmentsOverlapCarry(t *testing.T) {
	segs := []Segment{
		{StartMs: 0, EndMs: 1000, Text: strings.Repeat("a", 800)},
		{StartMs: 2000, EndMs: 3000, Text: strings.Repeat("b", 800)},
	}
	chunks := ChunkSegments(segs, 1000, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Text, strings.Repeat("a", 100)) {
		t.Errorf("second chunk should start with overlap from the first")
	}
}

func TestChunkSegmentsOversizedSegment(t *testing.T) {
	// One segment far above the limit, with sentence boundaries.
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("This is sentence number something quite long indeed. ")
	}
	segs := []Segment{{StartMs: 0, EndMs: 10000, Text: sb.String()}}

	chunks := ChunkSegments(segs, 500, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected oversized segment to split into multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > 500 {
			t.Errorf("chunk %d length %d exceeds max 500", i, len(c.Text))
		}
	}
}

func TestChunkSegmentsMultibyteBoundaries(t *testing.T) {
	// A long run of two-byte runes with no sentence boundaries forces the
	// hard split path; every cut must land on a rune boundary.
	segs := []Segment{{StartMs: 0, EndMs: 5000, Text: strings.Repeat("ф", 150)}}
	chunks := ChunkSegments(segs, 101, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected the oversized segment to split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d contains invalid UTF-8: %q", i, c.Text)
		}
		if n := utf8.RuneCountInString(c.Text); n > 101 {
			t.Errorf("chunk %d has %d runes, exceeds max 101", i, n)
		}
	}
}

func TestChunkSegmentsReconstruction(t *testing.T) {
	// Dropping each chunk's overlap prefix and concatenating the remainders
	// must reproduce the cleaned source text without loss.
	var segs []Segment
	var cleaned []string
	for i := 0; i < 30; i++ {
		text := fmt.Sprintf("token%03da token%03db token%03dc token%03dd.", i, i, i, i)
		segs = append(segs, Segment{StartMs: int64(i * 1000), EndMs: int64(i*1000 + 900), Text: text})
		cleaned = append(cleaned, Clean(text))
	}
	want := strings.Join(cleaned, " ")

	chunks := ChunkSegments(segs, 200, 60)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	got := chunks[0].Text
	for _, c := range chunks[1:] {
		text := c.Text
		// The chunk opens with a suffix of the text accumulated so far;
		// unique tokens make the longest such prefix unambiguous.
		overlap := 0
		limit := min(len(got), len(text))
		for k := limit; k > 0; k-- {
			if strings.HasSuffix(got, text[:k]) {
				overlap = k
				break
			}
		}
		if rest := strings.TrimSpace(text[overlap:]); rest != "" {
			got += " " + rest
		}
	}
	if got != want {
		t.Errorf("reconstructed text differs from source:\ngot  %q\nwant %q", got, want)
	}
}

func TestChunkSegmentsDeterministic(t *testing.T) {
	var segs []Segment
	for i := 0; i < 20; i++ {
		segs = append(segs, Segment{
			StartMs: int64(i * 3000),
			EndMs:   int64(i*3000 + 2000),
			Text:    strings.Repeat("alpha beta gamma ", 20),
		})
	}
	first := ChunkSegments(segs, 800, 100)
	second := ChunkSegments(segs, 800, 100)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkSegmentsPreconditions(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for overlap >= maxChars")
		}
	}()
	ChunkSegments(nil, 100, 100)
}

func TestParagraphs(t *testing.T) {
	segs := []Segment{
		{StartMs: 0, EndMs: 1000, Text: "first part"},
		{StartMs: 1500, EndMs: 2500, Text: "of the opening"},
		{StartMs: 9000, EndMs: 10000, Text: "a new thought entirely"},
	}
	paras := Paragraphs(segs)
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(paras))
	}
	if paras[0].Text != "First part of the opening" {
		t.Errorf("unexpected first paragraph: %q", paras[0].Text)
	}
	if paras[1].Text != "A new thought entirely" {
		t.Errorf("unexpected second paragraph: %q", paras[1].Text)
	}
	if paras[0].StartMs != 0 || paras[0].EndMs != 2500 {
		t.Errorf("unexpected first paragraph bounds: [%d, %d]", paras[0].StartMs, paras[0].EndMs)
	}
}

func TestParagraphsPreserveRawText(t *testing.T) {
	// Filler and noise markers survive paragraph formatting; cleaning only
	// applies on the chunking path.
	segs := []Segment{{StartMs: 0, EndMs: 1000, Text: "um so [music] whatever"}}
	paras := Paragraphs(segs)
	if len(paras) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(paras))
	}
	if paras[0].Text != "Um so [music] whatever" {
		t.Errorf("paragraph text should keep raw content, got %q", paras[0].Text)
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{61000, "1:01"},
		{599000, "9:59"},
		{3600000, "1:00:00"},
		{3723000, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatMs(tt.ms); got != tt.want {
			t.Errorf("FormatMs(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantSegs int
	}{
		{"empty payload", ``, "", 0},
		{"bare string", `"plain transcript text"`, "plain transcript text", 0},
		{"transcript field", `{"transcript": "from field"}`, "from field", 0},
		{
			"events",
			`{"events": [{"tStartMs": 0, "dDurationMs": 1000, "segs": [{"utf8": "hi"}]}]}`,
			"", 1,
		},
		{
			"loose segments",
			`{"segments": [{"startMs": 0, "durationMs": 500, "text": "a"}, {"tStartMs": 4000, "dDurationMs": 500, "utf8": "b"}]}`,
			"", 2,
		},
		{"unknown shape", `{"foo": 42}`, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if src.Text != tt.wantText {
				t.Errorf("text = %q, want %q", src.Text, tt.wantText)
			}
			if len(src.Segments) != tt.wantSegs {
				t.Errorf("segments = %d, want %d", len(src.Segments), tt.wantSegs)
			}
		})
	}
}

func TestProcessPlainString(t *testing.T) {
	segs, chunks := Process([]byte(`{"transcript": "short um text"}`), 3000, 400)
	if len(segs) != 1 || len(chunks) != 1 {
		t.Fatalf("expected 1 segment and 1 chunk, got %d / %d", len(segs), len(chunks))
	}
	if segs[0].StartMs != 0 || segs[0].EndMs != 0 {
		t.Errorf("plain string segment should have zero time bounds")
	}
	if chunks[0].Text != "short text" {
		t.Errorf("chunk text should be cleaned, got %q", chunks[0].Text)
	}
}

func TestProcessMalformedJSON(t *testing.T) {
	segs, chunks := Process([]byte(`{not json`), 3000, 400)
	if segs != nil || chunks != nil {
		t.Errorf("malformed input should degrade to empty output")
	}
}

func assertSegments(t *testing.T, got, want []Segment) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
