package format

import (
	"strings"
	"testing"
)

func TestWidenHeaderGapInsertsTwoBlankLines(t *testing.T) {
	input := "#1\n제목\n본문 시작."
	want := "#1\n제목\n\n\n본문 시작."

	if got := WidenHeaderGap(input); got != want {
		t.Fatalf("WidenHeaderGap() = %q, want %q", got, want)
	}
}

func TestWidenHeaderGapReplacesExistingGap(t *testing.T) {
	input := "제 1화\n\n\n\n\n본문이 시작된다."
	want := "제 1화\n\n\n본문이 시작된다."

	if got := WidenHeaderGap(input); got != want {
		t.Fatalf("WidenHeaderGap() = %q, want %q", got, want)
	}
}

func TestWidenHeaderGapIdempotent(t *testing.T) {
	input := "#1\n부제목\n본문 시작."

	once := WidenHeaderGap(input)
	twice := WidenHeaderGap(once)
	if once != twice {
		t.Fatalf("second pass changed output\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestWidenHeaderGapNoHeaderIsNoOp(t *testing.T) {
	input := "이것은 헤더가 아니라 바로 시작하는 충분히 평범한 본문 문장이다. 마침표로 끝난다.\n다음 줄."

	if got := WidenHeaderGap(input); got != input {
		t.Fatalf("WidenHeaderGap() = %q, want input unchanged", got)
	}
}

func TestWidenHeaderGapAllHeaderIsNoOp(t *testing.T) {
	input := "#1\n짧은 제목\n부제"

	if got := WidenHeaderGap(input); got != input {
		t.Fatalf("WidenHeaderGap() = %q, want input unchanged", got)
	}
}

func TestWidenHeaderGapStopsAtSixHeaderLines(t *testing.T) {
	lines := []string{"#1", "하나", "둘", "셋", "넷", "다섯", "여섯", "본문이 길게 이어진다."}
	input := strings.Join(lines, "\n")

	got := WidenHeaderGap(input)
	want := strings.Join([]string{"#1", "하나", "둘", "셋", "넷", "다섯", "", "", "여섯", "본문이 길게 이어진다."}, "\n")
	if got != want {
		t.Fatalf("WidenHeaderGap() = %q, want %q", got, want)
	}
}

func TestHeaderLikeLineRejectsSentenceEnders(t *testing.T) {
	bodyLines := []string{
		"그는 소리쳤다！",
		"정말로 그랬을까？",
		"그리고 침묵이 내려앉았다。",
		"여운만이 남았다…",
		"It ends here.",
		"Run!",
		"Why?",
	}
	for _, line := range bodyLines {
		if isHeaderLikeLine(line) {
			t.Fatalf("isHeaderLikeLine(%q) = true, want false", line)
		}
	}

	headerLines := []string{"제 3화", "#12", "짧은 제목"}
	for _, line := range headerLines {
		if !isHeaderLikeLine(line) {
			t.Fatalf("isHeaderLikeLine(%q) = false, want true", line)
		}
	}
}

func TestWidenHeaderGapSkipsExclamatoryBodyOpening(t *testing.T) {
	input := "모두 도망쳐야 한다고 그는 소리쳤다！\n사람들이 달리기 시작했다."

	if got := WidenHeaderGap(input); got != input {
		t.Fatalf("WidenHeaderGap() = %q, want input unchanged", got)
	}
}

func TestWidenHeaderGapClampsPathologicalBlankRuns(t *testing.T) {
	input := "#1\n제목\n본문 첫 줄.\n\n\n\n\n\n\n본문 둘째 줄."

	got := WidenHeaderGap(input)
	if strings.Contains(got, strings.Repeat("\n", 6)) {
		t.Fatalf("output contains 5+ consecutive blank lines: %q", got)
	}
}
