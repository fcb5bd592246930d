package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize collapses every whitespace run to a single space and
// trims both ends.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripControl drops control runes other than whitespace.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
