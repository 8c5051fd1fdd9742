package matcher

import (
	"strings"
	"unicode"
)

// Normalize prepares free-form user input for table lookups. It drops the
// decorative glyphs used on keyboard buttons, case-folds, trims and collapses
// inner whitespace.
func Normalize(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if isDecoration(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)

	return strings.Join(strings.Fields(stripped), " ")
}

func isDecoration(r rune) bool {
	switch {
	case r == '\uFE0F', r == '\uFE0E', r == '\u200D': // variation selectors, ZWJ
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators (flags)
		return true
	case r == '🛒', r == '🛍', r == '📱', r == '💻':
		return true
	}
	return false
}
