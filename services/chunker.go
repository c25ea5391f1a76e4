package services

import (
	"strings"
)

// Default chunking parameters, tunable via config.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// boundarySnapFloor is the fraction of the chunk size below which a
// sentence boundary is ignored and the hard cutoff is kept instead.
const boundarySnapFloor = 0.3

// Chunker splits text into bounded, overlapping chunks with sentence
// boundary awareness. Sizes are measured in runes, not bytes, since the
// corpus is predominantly CJK text.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Invalid parameters fall back to the
// defaults; overlap must stay below size or coverage breaks.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 10
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// isChunkBoundary reports whether r terminates a sentence for the
// purposes of boundary snapping.
func isChunkBoundary(r rune) bool {
	switch r {
	case '\n', '。', '.', '？', '！', '；':
		return true
	}
	return false
}

// Split chunks text into an ordered sequence of trimmed chunk strings.
// Output is deterministic for identical input, and the function never
// fails: pathological inputs without boundaries fall back to hard
// cutoffs at the chunk size.
func (c *Chunker) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	if n <= c.size {
		return []string{trimmed}
	}

	var chunks []string
	minSnap := int(float64(c.size) * boundarySnapFloor)

	start := 0
	for start < n {
		end := start + c.size
		if end > n {
			end = n
		}

		// Snap a non-final chunk back to the rightmost sentence
		// terminator, unless that would shrink it below the floor.
		if end < n {
			snap := -1
			for i := end - 1; i > start; i-- {
				if isChunkBoundary(runes[i]) {
					snap = i
					break
				}
			}
			if snap > start+minSnap {
				end = snap + 1
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}

		if end >= n {
			break
		}
		start = end - c.overlap
		if start < 0 {
			start = 0
		}
	}

	return chunks
}
