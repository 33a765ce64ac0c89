// Package util provides small string helpers shared across the codebase.
package util

import "strings"

// Truncate shortens a string to maxLen runes, adding "..." if truncated.
// Rune-aware so multi-byte input never gets cut mid-character.
func Truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// FirstLine returns the first line of a string with surrounding
// whitespace trimmed. Useful for collapsing multi-line error text
// into a single display row.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
