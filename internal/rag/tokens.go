package rag

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the usual rough ratio for English prose. We only need a
// conservative budget estimate, not an exact tokenizer.
const charsPerToken = 4

// EstimateTokens approximates the token count of a text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	t := n / charsPerToken
	if n%charsPerToken != 0 {
		t++
	}
	return t
}

// TruncateTokens cuts text down to approximately the given token budget.
func TruncateTokens(text string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	runes := []rune(text)
	max := tokens * charsPerToken
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max]))
}
