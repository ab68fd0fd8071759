package util

import "strings"

// DisplaySnippet returns a whitespace-normalized prefix of s capped at
// maxRunes, suitable for citation previews.
func DisplaySnippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 300
	}
	s = SanitizeText(s)
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return s
}
