// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Matches anything that is not a lowercase letter or digit.
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9]+`)

	// Decomposes accented characters and drops the combining marks.
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Slugify converts a document name into its URL slug.
//
// Examples:
//
//	"The Forest Hiker"     → "the-forest-hiker"
//	"Città  di   Roma!"    → "citta-di-roma"
//	"  Sea & Sun --Tour "  → "sea-sun-tour"
func Slugify(input string) string {
	s, _, err := transform.String(stripMarks, input)
	if err != nil {
		s = input
	}

	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlphanumericRe.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}
