package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Plain email (case-insensitive)
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +256 7xx..., (0xx) xxx-xxxx, 07xx...
// Only digits, spaces, dashes, dots, parentheses and plus; at least 9 characters
// so short numbers in case text (dates, counts) survive.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-.()]{7,}\d`)

func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// MaskContact keeps the first four characters of a contact and masks the rest,
// matching the "0701XXXXXX" style used on paper intake forms.
func MaskContact(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= 4 {
		return strings.Repeat("X", utf8.RuneCountInString(s))
	}
	r := []rune(s)
	return string(r[:4]) + strings.Repeat("X", len(r)-4)
}

// Cut a summary for listings at a word boundary
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && i < len(s) && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "…"
}

// Truncate returns at most n runes of s, without ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
