package strings

import "unicode/utf8"

// Truncate shortens s to at most maxBytes bytes without splitting a UTF-8
// sequence. Invalid bytes count as one rune each.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := 0
	for cut < len(s) {
		_, size := utf8.DecodeRuneInString(s[cut:])
		if cut+size > maxBytes {
			break
		}
		cut += size
	}
	return s[:cut]
}
