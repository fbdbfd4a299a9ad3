package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText prepares a string for fuzzy comparison: NFC unicode
// normalization, lower-casing, punctuation removal and whitespace folding.
// Non-ASCII letters (Cyrillic, Greek, ...) are kept.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFC.String(text)
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeKey builds a comparison key for a title/artist pair.
func NormalizeKey(title, artist string) string {
	return NormalizeText(title) + "|" + NormalizeText(artist)
}
