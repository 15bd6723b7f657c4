package services

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeName trims, collapses internal whitespace, and applies Unicode
// NFC so that visually identical display names compare equal.
func normalizeName(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return norm.NFC.String(s)
}

// normalizeMessage trims and applies NFC but keeps internal whitespace;
// compliment bodies may span multiple lines.
func normalizeMessage(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
