// Package rank selects the transcript chunks most relevant to a user query.
// The heuristic is deliberately simple and deterministic: keyword extraction
// with stop-word filtering, weighted exact and substring matching, and a small
// positional bias. No embedding search; at this context-budget scale an
// external ranking call is not worth the cost.
package rank

import (
	"regexp"
	"sort"
	"strings"

	"github.com/studyflow/studyflow/internal/transcript"
)

// DefaultMaxChunks is the number of chunks selected for a normal query.
const DefaultMaxChunks = 2

// DetailedMaxChunks is the number of chunks selected when the query asks for
// an expanded answer.
const DetailedMaxChunks = 4

const (
	exactMatchWeight     = 3.0
	substringMatchWeight = 1.0
	positionBiasWeight   = 0.1
	minKeywordLen        = 4
)

// detailPhrases are the fixed phrases that signal a request for a detailed
// answer and widen the context selection.
var detailPhrases = []string{
	"explain more",
	"tell me more",
	"elaborate",
	"in depth",
	"detailed",
	"deep dive",
	"comprehensive",
}

// stopWords are common short words excluded from keyword extraction.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"what", "when", "where", "which", "who", "whom", "whose", "why", "how",
		"this", "that", "these", "those", "the", "and", "for", "are", "was",
		"were", "been", "being", "have", "has", "had", "does", "did", "will",
		"would", "could", "should", "can", "about", "into", "from", "with",
		"they", "them", "their", "there", "then", "than",
	} {
		stopWords[w] = struct{}{}
	}
}

var nonWordRe = regexp.MustCompile(`[^\w]`)

// WantsDetail reports whether the query contains one of the fixed phrases
// that request a detailed answer.
func WantsDetail(query string) bool {
	q := strings.ToLower(query)
	for _, p := range detailPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// MaxChunksFor returns the context budget for a query: the detailed budget
// when the query asks for an expanded answer, the default otherwise.
func MaxChunksFor(query string) int {
	if WantsDetail(query) {
		return DetailedMaxChunks
	}
	return DefaultMaxChunks
}

// Keywords extracts scoring keywords from a query: whitespace tokens,
// lowercased, stripped of non-word characters, with short tokens and stop
// words removed.
func Keywords(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if len(tok) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		word := nonWordRe.ReplaceAllString(tok, "")
		if word == "" {
			continue
		}
		out = append(out, word)
	}
	return out
}

type scoredChunk struct {
	index int
	score float64
}

// Select returns the chunks most relevant to the query, at most maxChunks of
// them, in their original order. When the input already fits the budget, or
// when no keyword survives filtering, selection degrades to a plain prefix.
func Select(chunks []transcript.Chunk, query string, maxChunks int) []transcript.Chunk {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	if len(chunks) <= maxChunks {
		return chunks
	}

	keywords := Keywords(query)
	if len(keywords) == 0 {
		return chunks[:maxChunks]
	}

	scored := make([]scoredChunk, len(chunks))
	for i, c := range chunks {
		lower := strings.ToLower(c.Text)
		var score float64
		for _, kw := range keywords {
			exact := countWordMatches(lower, kw)
			substr := strings.Count(lower, kw)
			score += float64(exact) * exactMatchWeight
			if extra := substr - exact; extra > 0 {
				score += float64(extra) * substringMatchWeight
			}
		}
		// Flat positional bias toward earlier chunks; intentional tiebreak
		// toward introductory context, preserved from the original heuristic.
		score += float64(len(chunks)-i) * positionBiasWeight
		scored[i] = scoredChunk{index: i, score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].index < scored[j].index
	})

	picked := scored[:maxChunks]
	sort.Slice(picked, func(i, j int) bool { return picked[i].index < picked[j].index })

	out := make([]transcript.Chunk, 0, maxChunks)
	for _, sc := range picked {
		out = append(out, chunks[sc.index])
	}
	return out
}

// countWordMatches counts occurrences of word in text at word boundaries.
func countWordMatches(text, word string) int {
	count := 0
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			break
		}
		abs := start + idx
		if boundaryBefore(text, abs) && boundaryAfter(text, abs+len(word)) {
			count++
		}
		start = abs + len(word)
	}
	return count
}

func boundaryBefore(text string, i int) bool {
	return i == 0 || !isWordByte(text[i-1])
}

func boundaryAfter(text string, i int) bool {
	return i >= len(text) || !isWordByte(text[i])
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// JoinContext assembles the selected chunks into the prompt context block.
func JoinContext(chunks []transcript.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
