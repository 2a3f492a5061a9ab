// Package relevance decides whether an inbound message is worth routing at all.
package relevance

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minMeaningfulRunes = 3

// acknowledgements are short replies that never need an answer.
var acknowledgements = map[string]struct{}{
	"ok":     {},
	"yes":    {},
	"no":     {},
	"thanks": {},
	"thx":    {},
}

// IsRelevant reports whether text carries enough content to be classified.
// It is pure and safe for concurrent use.
func IsRelevant(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if utf8.RuneCountInString(trimmed) < minMeaningfulRunes {
		return false
	}
	if !strings.ContainsFunc(trimmed, unicode.IsLetter) {
		return false
	}
	if _, ok := acknowledgements[strings.ToLower(trimmed)]; ok {
		return false
	}
	return true
}
