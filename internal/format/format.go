package format

import "strings"

// Apply runs the full post-translation formatting pass over an assembled
// translation: header reconciliation against the source text, dialogue
// spacing, header/body gap widening, then per-line trailing spaces. Trailing
// spaces come last so they see the final line structure.
func Apply(sourceText, translatedText string) string {
	out := ReconcileHeader(sourceText, translatedText)
	out = NormalizeDialogueSpacing(out)
	out = WidenHeaderGap(out)
	out = EnsureTrailingSpacePerLine(out)
	return out
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func firstNonBlankIndex(lines []string) int {
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			return i
		}
	}
	return -1
}

func collapseBlankRuns(lines []string, max int) []string {
	out := make([]string, 0, len(lines))
	run := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			run++
			if run > max {
				continue
			}
			out = append(out, "")
			continue
		}
		run = 0
		out = append(out, line)
	}
	return out
}
