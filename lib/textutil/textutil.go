package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeSpace trims the string and collapses inner whitespace runs to a single space,
// the same way XPath's normalize-space() does.
func NormalizeSpace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// FoldASCII strips diacritics ("Loulé" -> "Loule", "É" -> "E").
// Characters without a decomposition are left as they are.
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// ContainsNormalized reports whether `phrase` appears in `text` once both have their whitespace normalized.
func ContainsNormalized(text, phrase string) bool {
	return strings.Contains(NormalizeSpace(text), NormalizeSpace(phrase))
}
