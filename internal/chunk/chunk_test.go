package chunk

import (
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n\n", "\r\n \r\n"} {
		if chunks := Split(input, 100); chunks != nil {
			t.Fatalf("Split(%q) = %v, want nil", input, chunks)
		}
	}
}

func TestSplitPacksParagraphsGreedily(t *testing.T) {
	first := strings.Repeat("가", 3000)
	second := strings.Repeat("나", 2000)
	input := first + "\n\n" + second

	chunks := Split(input, 4500)
	if len(chunks) != 2 {
		t.Fatalf("chunk count = %d, want 2", len(chunks))
	}
	if chunks[0] != first || chunks[1] != second {
		t.Fatalf("chunks do not match source paragraphs")
	}
}

func TestSplitJoinsSmallParagraphsWithBlankLine(t *testing.T) {
	input := "first paragraph\n\nsecond paragraph\n\n\n\nthird paragraph"

	chunks := Split(input, 200)
	if len(chunks) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(chunks))
	}
	want := "first paragraph\n\nsecond paragraph\n\nthird paragraph"
	if chunks[0] != want {
		t.Fatalf("chunk = %q, want %q", chunks[0], want)
	}
}

func TestSplitHardSplitsOversizedParagraph(t *testing.T) {
	input := strings.Repeat("あ", 250)

	chunks := Split(input, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(chunks))
	}
	if runeLen(chunks[0]) != 100 || runeLen(chunks[1]) != 100 {
		t.Fatalf("hard-split slices = %d, %d runes, want exactly 100", runeLen(chunks[0]), runeLen(chunks[1]))
	}
	if runeLen(chunks[2]) != 50 {
		t.Fatalf("final slice = %d runes, want 50", runeLen(chunks[2]))
	}
	if strings.Join(chunks, "") != input {
		t.Fatalf("hard-split slices do not reassemble the paragraph")
	}
}

func TestSplitRespectsLimitAndOrder(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 8; i++ {
		paragraphs = append(paragraphs, strings.Repeat(string(rune('a'+i)), 40))
	}
	input := strings.Join(paragraphs, "\n\n")

	chunks := Split(input, 90)
	if len(chunks) < 2 {
		t.Fatalf("chunk count = %d, want multiple", len(chunks))
	}
	for i, c := range chunks {
		if runeLen(c) > 90 {
			t.Fatalf("chunk %d length = %d, want <= 90", i, runeLen(c))
		}
		if strings.TrimSpace(c) == "" {
			t.Fatalf("chunk %d is blank", i)
		}
	}

	reassembled := strings.Join(chunks, "\n\n")
	if reassembled != input {
		t.Fatalf("reassembled text differs from input\nwant: %q\ngot:  %q", input, reassembled)
	}
}

func TestSplitNormalizesCRLF(t *testing.T) {
	chunks := Split("one\r\n\r\ntwo", 100)
	if len(chunks) != 1 || chunks[0] != "one\n\ntwo" {
		t.Fatalf("chunks = %v, want single LF-normalized chunk", chunks)
	}
}
