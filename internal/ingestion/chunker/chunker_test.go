package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	t.Parallel()
	for _, input := range []string{"", "   ", "\n\n\t"} {
		if got := Split(input, Options{ChunkSize: 100}); got != nil {
			t.Fatalf("expected nil for %q, got %d chunks", input, len(got))
		}
	}
}

func TestSplitShortInputReturnedWhole(t *testing.T) {
	t.Parallel()
	text := "short text"
	got := Split(text, Options{ChunkSize: 1000, Overlap: 200})
	if len(got) != 1 || got[0] != text {
		t.Fatalf("expected single whole chunk, got %v", got)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("word one two three. ", 200)
	size := 100
	chunks := Split(text, Options{ChunkSize: size, Overlap: 20, Boundary: BoundarySentences})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > size {
			t.Fatalf("chunk %d exceeds size: %d > %d", i, n, size)
		}
	}
}

func TestSplitCoversAllCharacters(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("abcdefghij", 50)
	chunks := Split(text, Options{ChunkSize: 64, Overlap: 0, Boundary: BoundaryNone})
	if strings.Join(chunks, "") != text {
		t.Fatalf("concatenation without overlap must reproduce input")
	}
}

func TestSplitOverlapRepeatsTail(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("0123456789", 30)
	overlap := 10
	chunks := Split(text, Options{ChunkSize: 50, Overlap: overlap, Boundary: BoundaryNone})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		tail := string(prev[len(prev)-overlap:])
		head := string(cur[:overlap])
		if tail != head {
			t.Fatalf("chunk %d head %q does not repeat previous tail %q", i, head, tail)
		}
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	t.Parallel()
	para := strings.Repeat("x", 60)
	text := para + "\n\n" + para + "\n\n" + para
	chunks := Split(text, Options{ChunkSize: 100, Overlap: 0, Boundary: BoundaryParagraphs})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// The first cut should land on the paragraph break, not mid-paragraph.
	if got := strings.TrimRight(chunks[0], "\n"); got != para {
		t.Fatalf("first chunk not cut at paragraph break: %q", got)
	}
}

func TestSplitSentenceBoundary(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("This is a sentence. ", 20)
	chunks := Split(text, Options{ChunkSize: 90, Overlap: 0, Boundary: BoundarySentences})
	for i, chunk := range chunks[:len(chunks)-1] {
		trimmed := strings.TrimRight(chunk, " ")
		if !strings.HasSuffix(trimmed, ".") {
			t.Fatalf("chunk %d not cut at sentence boundary: %q", i, chunk)
		}
	}
}

func TestSplitAlwaysMakesProgress(t *testing.T) {
	t.Parallel()
	// Overlap larger than the chunk would stall a naive scanner.
	text := strings.Repeat("a", 500)
	chunks := Split(text, Options{ChunkSize: 20, Overlap: 500, Boundary: BoundaryNone})
	if len(chunks) == 0 || len(chunks) > 100 {
		t.Fatalf("unexpected chunk count %d", len(chunks))
	}
}

func TestSplitTinyChunkSizeClamped(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("b", 50)
	chunks := Split(text, Options{ChunkSize: 1, Overlap: 0, Boundary: BoundaryNone})
	for i, chunk := range chunks {
		if len(chunk) > minChunkSize {
			t.Fatalf("chunk %d exceeds clamped minimum size: %d", i, len(chunk))
		}
	}
	if strings.Join(chunks, "") != text {
		t.Fatalf("coverage lost under clamped size")
	}
}
