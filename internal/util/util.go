// Package util provides small string helpers shared by the tools.
package util

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes s safe to use as a single path element. Path
// separators, spaces and other punctuation become underscores.
func SanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

// JoinNames joins names with "_" after sanitizing each one.
func JoinNames(names ...string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		parts = append(parts, SanitizeFileName(n))
	}
	return strings.Join(parts, "_")
}
