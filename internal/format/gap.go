package format

import (
	"strings"
	"unicode/utf8"

	"noveltrans/internal/episode"
)

const (
	maxHeaderLines     = 6
	maxHeaderLineRunes = 40
)

// Sentence-terminal punctuation, ASCII and fullwidth, that disqualifies a
// short line from being header-like.
var terminalPunctuation = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '…': true,
}

// WidenHeaderGap finds the leading block of header-like lines (episode marker,
// title, subtitle) and separates it from the body with exactly two blank
// lines.
func WidenHeaderGap(text string) string {
	lines := splitLines(text)
	start := firstNonBlankIndex(lines)
	if start < 0 {
		return text
	}

	headerCount := 0
	boundary := start
	for boundary < len(lines) {
		if strings.TrimSpace(lines[boundary]) == "" {
			boundary++
			continue
		}
		if !isHeaderLikeLine(lines[boundary]) {
			break
		}
		headerCount++
		boundary++
		if headerCount >= maxHeaderLines {
			break
		}
	}

	// No header block, or the whole document reads as header.
	if headerCount == 0 || boundary >= len(lines) {
		return text
	}

	gapStart := boundary
	for gapStart > start && strings.TrimSpace(lines[gapStart-1]) == "" {
		gapStart--
	}

	out := make([]string, 0, len(lines)+2)
	out = append(out, lines[:gapStart]...)
	out = append(out, "", "")
	out = append(out, lines[boundary:]...)

	out = collapseBlankRuns(out, 4)
	return strings.TrimRight(strings.Join(out, "\n"), " \t\n")
}

func isHeaderLikeLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if _, ok := episode.ParseHeaderLine(trimmed); ok {
		return true
	}
	if utf8.RuneCountInString(trimmed) > maxHeaderLineRunes {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return !terminalPunctuation[last]
}
