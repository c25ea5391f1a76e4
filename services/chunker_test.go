package services

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitEmptyInput(t *testing.T) {
	c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	if got := c.Split(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := c.Split("   \n\t  "); got != nil {
		t.Fatalf("expected nil for whitespace input, got %v", got)
	}
}

func TestSplitShortInput(t *testing.T) {
	c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	got := c.Split("  退款政策请参考帮助中心。  ")
	want := []string{"退款政策请参考帮助中心。"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitLongTextChunkCount(t *testing.T) {
	// 1200 runes, no sentence boundaries: hard cutoffs at 500 with a
	// 50-rune overlap give chunks of 500, 500 and 300.
	c := NewChunker(500, 50)
	text := strings.Repeat("测", 1200)

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantSizes := []int{500, 500, 300}
	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n != wantSizes[i] {
			t.Errorf("chunk %d: %d runes, want %d", i, n, wantSizes[i])
		}
	}
}

func TestSplitOverlap(t *testing.T) {
	c := NewChunker(100, 10)
	text := strings.Repeat("甲", 250)

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	// The tail of each chunk reappears at the head of the next.
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	if string(first[len(first)-10:]) != string(second[:10]) {
		t.Fatalf("overlap not preserved between chunks")
	}
}

func TestSplitSnapsToSentenceBoundary(t *testing.T) {
	c := NewChunker(100, 10)
	// Boundary at rune 79, comfortably past the 30-rune floor.
	text := strings.Repeat("甲", 79) + "。" + strings.Repeat("乙", 170)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "。") {
		t.Fatalf("first chunk should end at the sentence boundary, got %q", chunks[0])
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 80 {
		t.Fatalf("first chunk is %d runes, want 80", n)
	}
}

func TestSplitIgnoresEarlyBoundary(t *testing.T) {
	c := NewChunker(100, 10)
	// The only boundary sits at rune 20, below the snap floor, so the
	// chunker keeps the hard cutoff instead of producing a tiny chunk.
	text := strings.Repeat("甲", 20) + "。" + strings.Repeat("乙", 200)

	chunks := c.Split(text)
	if n := utf8.RuneCountInString(chunks[0]); n != 100 {
		t.Fatalf("first chunk is %d runes, want 100 (no snap)", n)
	}
}

func TestSplitBoundedChunkSize(t *testing.T) {
	c := NewChunker(500, 50)
	text := strings.Repeat("这是一个很长的句子。", 300)

	for i, chunk := range c.Split(text) {
		if n := utf8.RuneCountInString(chunk); n > 500 {
			t.Fatalf("chunk %d exceeds size bound: %d runes", i, n)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := NewChunker(500, 50)
	text := strings.Repeat("常见问题解答。退款政策说明！配送时间安排？", 60)

	a := c.Split(text)
	b := c.Split(text)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical input produced different chunkings")
	}
}

func TestNewChunkerInvalidParams(t *testing.T) {
	c := NewChunker(0, -1)
	if c.size != DefaultChunkSize || c.overlap != DefaultChunkOverlap {
		t.Fatalf("invalid params should fall back to defaults, got size=%d overlap=%d", c.size, c.overlap)
	}

	c = NewChunker(40, 45)
	if c.overlap >= c.size {
		t.Fatalf("overlap %d must stay below size %d", c.overlap, c.size)
	}
}
