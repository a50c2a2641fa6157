package rank

import (
	"testing"

	"github.com/studyflow/studyflow/internal/transcript"
)

func mkChunks(texts ...string) []transcript.Chunk {
	out := make([]transcript.Chunk, len(texts))
	for i, t := range texts {
		out[i] = transcript.Chunk{StartMs: int64(i * 1000), EndMs: int64(i*1000 + 900), Text: t}
	}
	return out
}

func TestSelectPassthrough(t *testing.T) {
	chunks := mkChunks("alpha", "beta")
	got := Select(chunks, "anything about gravity", 4)
	if len(got) != 2 {
		t.Fatalf("expected all chunks back, got %d", len(got))
	}
	for i := range chunks {
		if got[i] != chunks[i] {
			t.Errorf("chunk %d reordered or changed", i)
		}
	}
}

func TestSelectNoKeywordsFallback(t *testing.T) {
	chunks := mkChunks("one", "two", "three", "four", "five")
	// Every token is short or a stop word.
	got := Select(chunks, "why is the", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0] != chunks[0] || got[1] != chunks[1] {
		t.Errorf("zero-keyword query should return the first chunks verbatim")
	}
}

func TestSelectKeywordScoring(t *testing.T) {
	chunks := mkChunks(
		"nothing of interest here at all",
		"gravity is discussed here, gravity pulls objects together",
		"a passing mention of gravity",
		"still nothing relevant in this one",
	)
	got := Select(chunks, "explain gravity please", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0] != chunks[1] || got[1] != chunks[2] {
		t.Errorf("expected the two gravity chunks in original order, got %+v", got)
	}
}

func TestSelectPreservesOriginalOrder(t *testing.T) {
	chunks := mkChunks(
		"one mention of entropy",
		"filler text with nothing",
		"entropy entropy entropy all over",
	)
	got := Select(chunks, "define entropy concept", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	// Chunk 2 scores highest, chunk 0 second; output keeps index order.
	if got[0] != chunks[0] || got[1] != chunks[2] {
		t.Errorf("selected chunks should come back in original order, got %+v", got)
	}
}

func TestSelectPositionalBias(t *testing.T) {
	// Identical content: the bias must favor earlier chunks.
	chunks := mkChunks(
		"photosynthesis overview",
		"photosynthesis overview",
		"photosynthesis overview",
		"photosynthesis overview",
	)
	got := Select(chunks, "photosynthesis basics", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0] != chunks[0] || got[1] != chunks[1] {
		t.Errorf("equal-content chunks should resolve to the earliest ones")
	}
}

func TestSelectExactBeatsSubstring(t *testing.T) {
	chunks := mkChunks(
		"discussing cellulars and cellularity at length, cellularly speaking",
		"the cell wall: a cell has one cell membrane",
		"unrelated filler to force scoring",
	)
	// "cell" appears as substring many times in chunk 0 but as an exact word
	// three times in chunk 1; exact matches weigh 3x.
	got := Select(chunks, "cell structure overview", 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0] != chunks[1] {
		t.Errorf("exact word matches should outweigh substring hits, got %q", got[0].Text)
	}
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"stop words removed", "what is the gravity", []string{"gravity"}},
		{"short tokens removed", "a to of gravity", []string{"gravity"}},
		{"punctuation stripped", "gravity? momentum!", []string{"gravity", "momentum"}},
		{"all filtered", "why is it so", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Keywords(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Keywords(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("keyword %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMaxChunksFor(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"what is gravity", DefaultMaxChunks},
		{"explain more about gravity", DetailedMaxChunks},
		{"please elaborate", DetailedMaxChunks},
		{"give me a detailed walkthrough", DetailedMaxChunks},
		{"tell me more", DetailedMaxChunks},
		{"short version please", DefaultMaxChunks},
	}
	for _, tt := range tests {
		if got := MaxChunksFor(tt.query); got != tt.want {
			t.Errorf("MaxChunksFor(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestJoinContext(t *testing.T) {
	got := JoinContext(mkChunks("first", "second"))
	want := "first\n\n---\n\nsecond"
	if got != want {
		t.Errorf("JoinContext = %q, want %q", got, want)
	}
}
