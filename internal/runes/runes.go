// Package runes provides rune-boundary-safe byte slicing. Chunk sizes,
// overlap windows and truncation limits are byte budgets; a cut landing
// inside a multi-byte UTF-8 sequence would corrupt the text, so every cut
// here is moved to a rune boundary while staying within the budget.
package runes

import "unicode/utf8"

// Floor returns the largest index <= i that starts a rune in s. Indexes past
// the end clamp to len(s).
func Floor(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i < 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// Ceil returns the smallest index >= i that starts a rune in s, or len(s).
func Ceil(s string, i int) int {
	if i < 0 {
		return 0
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	if i > len(s) {
		return len(s)
	}
	return i
}

// Truncate returns the longest prefix of s within n bytes that ends on a
// rune boundary.
func Truncate(s string, n int) string {
	return s[:Floor(s, n)]
}

// Tail returns the suffix of s within n bytes that starts on a rune
// boundary.
func Tail(s string, n int) string {
	if n >= len(s) {
		return s
	}
	return s[Ceil(s, len(s)-n):]
}
