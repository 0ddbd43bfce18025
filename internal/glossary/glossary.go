package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Load reads a JSON object mapping source terms (character names, recurring
// proper nouns) to their fixed Korean renderings. An empty path means no
// glossary.
func Load(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary file %s: %w", path, err)
	}

	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse glossary JSON %s: %w", path, err)
	}

	cleaned := make(map[string]string, len(data))
	for k, v := range data {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		cleaned[key] = val
	}

	return cleaned, nil
}

// Prompt renders the glossary as an instruction block for the translation
// prompt, keys sorted for a stable prompt.
func Prompt(glossary map[string]string) string {
	if len(glossary) == 0 {
		return ""
	}

	keys := make([]string, 0, len(glossary))
	for key := range glossary {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString("Glossary (use these exact Korean renderings):\n")
	for _, key := range keys {
		builder.WriteString("- ")
		builder.WriteString(key)
		builder.WriteString(" => ")
		builder.WriteString(glossary[key])
		builder.WriteString("\n")
	}
	return strings.TrimSuffix(builder.String(), "\n")
}

// Apply enforces glossary renderings on translated text. Longer keys replace
// first so a name that contains another name is not clobbered halfway.
func Apply(text string, glossary map[string]string) string {
	if len(glossary) == 0 || text == "" {
		return text
	}
	return buildReplacer(glossary).Replace(text)
}

func buildReplacer(glossary map[string]string) *strings.Replacer {
	type entry struct {
		key   string
		value string
	}

	entries := make([]entry, 0, len(glossary))
	for key, value := range glossary {
		entries = append(entries, entry{key: key, value: value})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return len([]rune(entries[i].key)) > len([]rune(entries[j].key))
	})

	replacements := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		replacements = append(replacements, e.key, e.value)
	}
	return strings.NewReplacer(replacements...)
}
