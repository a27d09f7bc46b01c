package logging

import (
	"strings"
	"unicode/utf8"
)

const mask = "****"

// RedactUsername keeps the first 2 runes of a trimmed username and masks the
// rest. Usernames shorter than 3 runes are returned as is.
func RedactUsername(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) < 3 {
		return s
	}
	return RedactKeepPrefix(s, 2)
}

// RedactKeepPrefix keeps the first keep runes of the trimmed input and
// replaces the remainder with "****". Inputs of at most keep runes are
// returned unchanged.
func RedactKeepPrefix(s string, keep int) string {
	s = strings.TrimSpace(s)
	keep = max(keep, 0)
	if utf8.RuneCountInString(s) <= keep {
		return s
	}
	return s[:runeOffset(s, keep)] + mask
}

// runeOffset returns the byte offset just past the first n runes of s.
func runeOffset(s string, n int) int {
	offset := 0
	for ; n > 0 && offset < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return offset
}
