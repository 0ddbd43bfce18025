package episode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which heading convention an episode marker line uses.
type Kind int

const (
	KindHash Kind = iota
	KindJapanese
	KindKorean
	KindBareNumber
)

func (k Kind) String() string {
	switch k {
	case KindHash:
		return "hash"
	case KindJapanese:
		return "japanese"
	case KindKorean:
		return "korean"
	case KindBareNumber:
		return "bare_number"
	default:
		return "unknown"
	}
}

type Marker struct {
	Kind   Kind
	Number int
	Raw    string
}

const leadingScanLines = 12

var (
	koreanPattern     = regexp.MustCompile(`^제\s*(\d+)\s*화$`)
	japanesePattern   = regexp.MustCompile(`^第\s*(\d+)\s*話$`)
	hashPattern       = regexp.MustCompile(`^#(\d{1,4})$`)
	bareNumberPattern = regexp.MustCompile(`^(\d+)화$`)
)

// ParseHeaderLine matches a single line against the recognized episode marker
// forms in fixed priority order: Korean, Japanese, hash, bare number.
func ParseHeaderLine(line string) (Marker, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Marker{}, false
	}

	candidates := []struct {
		kind    Kind
		pattern *regexp.Regexp
	}{
		{KindKorean, koreanPattern},
		{KindJapanese, japanesePattern},
		{KindHash, hashPattern},
		{KindBareNumber, bareNumberPattern},
	}

	for _, candidate := range candidates {
		match := candidate.pattern.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		number, err := strconv.Atoi(match[1])
		if err != nil || number <= 0 {
			continue
		}
		return Marker{Kind: candidate.kind, Number: number, Raw: trimmed}, true
	}

	return Marker{}, false
}

// ExtractLeadingMarker finds the episode marker that opens a text. Only the
// explicit forms (hash, Korean, Japanese) qualify; a bare "12화" at the top of
// a document is too ambiguous to trust. The marker must be the first non-blank
// line, and the scan gives up after the first 12 lines.
func ExtractLeadingMarker(text string) (Marker, bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > leadingScanLines {
		lines = lines[:leadingScanLines]
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		marker, ok := ParseHeaderLine(line)
		if !ok || marker.Kind == KindBareNumber {
			return Marker{}, false
		}
		return marker, true
	}

	return Marker{}, false
}

// CanonicalHeader renders the single target form all marker variants reconcile to.
func CanonicalHeader(number int) string {
	return fmt.Sprintf("제 %d화", number)
}
