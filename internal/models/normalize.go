package models

import (
	"strings"
	"unicode"
)

// NormalizeTicketNumber trims, uppercases and strips every whitespace rune so
// that "conf-a 12 " and "CONF-A12" compare equal.
func NormalizeTicketNumber(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// LooksLikeEmail is used by lookups that accept either identifier.
func LooksLikeEmail(query string) bool {
	return strings.Contains(query, "@")
}
