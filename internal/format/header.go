package format

import (
	"strings"

	"noveltrans/internal/episode"
)

// ReconcileHeader rewrites the leading episode marker of a translated text to
// the canonical Korean form carrying the source text's episode number, and
// removes the duplicate marker line models sometimes emit next to it. When the
// source has no leading marker, or the translated text's leading lines don't
// carry the expected number, the text passes through untouched.
func ReconcileHeader(sourceText, translatedText string) string {
	source, ok := episode.ExtractLeadingMarker(sourceText)
	if !ok {
		return translatedText
	}
	canonical := episode.CanonicalHeader(source.Number)

	lines := splitLines(translatedText)
	first := firstNonBlankIndex(lines)
	if first < 0 {
		return translatedText
	}

	firstMarker, firstOK := episode.ParseHeaderLine(lines[first])
	var nextMarker episode.Marker
	nextOK := false
	if first+1 < len(lines) {
		nextMarker, nextOK = episode.ParseHeaderLine(lines[first+1])
	}

	switch {
	case firstOK && firstMarker.Number == source.Number:
		if lines[first] != canonical {
			lines[first] = canonical
		}
		if nextOK && nextMarker.Number == source.Number {
			lines = append(lines[:first+1], lines[first+2:]...)
			lines = collapseGapAt(lines, first+1)
		}
		return trimLeading(strings.Join(lines, "\n"))

	case !firstOK && nextOK && nextMarker.Number == source.Number:
		lines[first+1] = canonical
		return trimLeading(strings.Join(lines, "\n"))
	}

	return translatedText
}

// collapseGapAt shrinks the run of blank lines starting at index at down to a
// single blank line, removing at most two.
func collapseGapAt(lines []string, at int) []string {
	blanks := 0
	for at+blanks < len(lines) && strings.TrimSpace(lines[at+blanks]) == "" {
		blanks++
	}

	remove := blanks - 1
	if remove > 2 {
		remove = 2
	}
	if remove <= 0 {
		return lines
	}
	return append(lines[:at], lines[at+remove:]...)
}

func trimLeading(text string) string {
	return strings.TrimLeft(text, " \t\n")
}
