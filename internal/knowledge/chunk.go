// Package knowledge holds the reference corpus and the term-scored retrieval
// used to ground replies.
package knowledge

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the upper bound, in characters, of a chunk.
const DefaultChunkSize = 800

// Chunk is a bounded slice of reference text.
type Chunk struct {
	Text   string
	Source string
}

// SplitText greedily accumulates whitespace-delimited words until adding the
// next word would exceed size characters. A single word longer than size
// becomes a chunk of its own. The trailing partial chunk is always kept.
func SplitText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var (
		chunks  []string
		current strings.Builder
		length  int
	)
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		if length+1+n <= size {
			if length > 0 {
				current.WriteByte(' ')
				length++
			}
			current.WriteString(word)
			length += n
			continue
		}
		if length > 0 {
			chunks = append(chunks, current.String())
		}
		current.Reset()
		current.WriteString(word)
		length = n
	}
	if length > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func chunksFor(text, source string, size int) []Chunk {
	parts := SplitText(text, size)
	out := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		out = append(out, Chunk{Text: p, Source: source})
	}
	return out
}
