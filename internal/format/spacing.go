package format

import (
	"strings"
	"unicode/utf8"
)

// NormalizeDialogueSpacing pads every dialogue line with a blank line above
// and below. Dialogue is any line whose trimmed form opens with a straight
// double quote or a CJK corner bracket. Runs of three or more blank lines are
// collapsed back to two afterwards, so repeated dialogue never inflates the
// gaps.
func NormalizeDialogueSpacing(text string) string {
	lines := splitLines(text)
	out := make([]string, 0, len(lines)+8)

	for i, line := range lines {
		if !isDialogueLine(line) {
			out = append(out, line)
			continue
		}

		if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
		out = append(out, line)
		if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
			out = append(out, "")
		}
	}

	out = collapseBlankRuns(out, 2)
	return strings.TrimRight(strings.Join(out, "\n"), " \t\n")
}

func isDialogueLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	switch r, _ := utf8.DecodeRuneInString(trimmed); r {
	case '"', '「', '『':
		return true
	}
	return false
}

// EnsureTrailingSpacePerLine ends every non-blank line with exactly one
// space, the soft-break convention of the target platform. Blank lines stay
// empty. Idempotent.
func EnsureTrailingSpacePerLine(text string) string {
	lines := splitLines(text)
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			lines[i] = ""
			continue
		}
		lines[i] = trimmed + " "
	}
	return strings.Join(lines, "\n")
}
