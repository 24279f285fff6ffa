// Package chunker splits extracted document text into bounded, overlapping
// spans suitable for embedding. Cut points prefer paragraph, line, sentence
// and word boundaries before falling back to hard character cuts.
package chunker

import (
	"strings"
	"unicode/utf8"
)

type Options struct {
	ChunkSize int // target chunk size in characters
	Overlap   int // characters shared between adjacent chunks
}

func DefaultOptions() Options {
	return Options{
		ChunkSize: 1000,
		Overlap:   150,
	}
}

type Chunk struct {
	Content string
	Index   int
}

// Boundary separators in order of preference.
var separators = []string{"\n\n", "\n", ". ", " "}

// lookback caps how far a cut may retreat to find a boundary before a
// hard character cut is taken instead.
const lookback = 200

// Split produces overlapping chunks covering text in order. Every adjacent
// pair shares at least opts.Overlap characters, except possibly the final
// chunk, which may be shorter.
func Split(text string, opts Options) []Chunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Overlap >= opts.ChunkSize {
		opts.Overlap = opts.ChunkSize / 2
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	idx := 0
	start := 0
	for start < len(runes) {
		end := start + opts.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutAt(runes, start, end)
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{Content: content, Index: idx})
			idx++
		}

		if end == len(runes) {
			break
		}
		next := end - opts.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// cutAt retreats from the proposed end toward the best boundary within the
// lookback window. The returned cut is exclusive and always > start.
func cutAt(runes []rune, start, end int) int {
	limit := end - lookback
	if limit < start+1 {
		limit = start + 1
	}
	window := string(runes[limit:end])

	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			cut := limit + utf8.RuneCountInString(window[:i]) + utf8.RuneCountInString(sep)
			if cut > start {
				return cut
			}
		}
	}
	return end
}
