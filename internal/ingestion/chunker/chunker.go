package chunker

import (
	"strings"
	"unicode"
)

// Boundary is the preferred split boundary. The splitter degrades gracefully:
// paragraphs fall back to sentences, sentences to whitespace, whitespace to a
// hard cut.
type Boundary string

const (
	BoundaryParagraphs Boundary = "paragraphs"
	BoundarySentences  Boundary = "sentences"
	BoundaryNone       Boundary = "none"
)

type Options struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int
	// Overlap is the number of trailing characters repeated at the start of
	// the next chunk. Clamped to ChunkSize/2.
	Overlap  int
	Boundary Boundary
}

const minChunkSize = 10

// Split cuts text into overlapping chunks. Every input character is covered
// by at least one chunk and no chunk exceeds ChunkSize. Empty or
// whitespace-only input yields nil; input shorter than ChunkSize is returned
// whole.
func Split(text string, opts Options) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	size := opts.ChunkSize
	if size < minChunkSize {
		size = minChunkSize
	}
	overlap := opts.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size/2 {
		overlap = size / 2
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := findCut(runes, start, end, opts.Boundary)
		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		// Overlap must never stall the scan.
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// findCut searches backwards from the window end for the best boundary. Only
// the second half of the window is considered so chunks stay near the target
// size.
func findCut(runes []rune, start, end int, boundary Boundary) int {
	if boundary == BoundaryNone {
		return end
	}
	floor := start + (end-start)/2

	if boundary != BoundarySentences {
		if cut := lastParagraphBreak(runes, floor, end); cut > 0 {
			return cut
		}
	}
	if cut := lastSentenceBreak(runes, floor, end); cut > 0 {
		return cut
	}
	if cut := lastWhitespace(runes, floor, end); cut > 0 {
		return cut
	}
	return end
}

func lastParagraphBreak(runes []rune, floor, end int) int {
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	return 0
}

func lastSentenceBreak(runes []rune, floor, end int) int {
	for i := end - 1; i > floor; i-- {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		// A terminator counts only when followed by whitespace or the window edge.
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	return 0
}

func lastWhitespace(runes []rune, floor, end int) int {
	for i := end - 1; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return 0
}
