package chunk

import (
	"strings"
	"unicode/utf8"
)

const defaultMaxChars = 3000

// Split cuts source text into translation-sized chunks aligned on paragraph
// boundaries. A paragraph is a maximal run of non-blank lines; paragraphs pack
// greedily into a chunk as long as the combined rune count stays within
// maxChars. A single paragraph larger than maxChars is hard-split into
// fixed-size rune slices, which may cut mid-sentence.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		current.Reset()
		currentLen = 0
	}

	for _, paragraph := range paragraphs {
		paragraphLen := runeLen(paragraph)

		if paragraphLen > maxChars {
			flush()
			chunks = append(chunks, splitOversizedParagraph(paragraph, maxChars)...)
			continue
		}

		if currentLen == 0 {
			current.WriteString(paragraph)
			currentLen = paragraphLen
			continue
		}

		if currentLen+2+paragraphLen <= maxChars {
			current.WriteString("\n\n")
			current.WriteString(paragraph)
			currentLen += 2 + paragraphLen
			continue
		}

		flush()
		current.WriteString(paragraph)
		currentLen = paragraphLen
	}

	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	lines := strings.Split(text, "\n")
	paragraphs := make([]string, 0, len(lines))
	current := make([]string, 0, 16)

	flush := func() {
		if len(current) == 0 {
			return
		}
		paragraph := strings.TrimSpace(strings.Join(current, "\n"))
		current = current[:0]
		if paragraph == "" {
			return
		}
		paragraphs = append(paragraphs, paragraph)
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}

	flush()
	return paragraphs
}

func splitOversizedParagraph(paragraph string, maxChars int) []string {
	runes := []rune(paragraph)
	if len(runes) <= maxChars {
		return []string{paragraph}
	}

	parts := make([]string, 0, len(runes)/maxChars+1)
	for len(runes) > maxChars {
		parts = append(parts, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if strings.TrimSpace(string(runes)) != "" {
		parts = append(parts, string(runes))
	}
	return parts
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
