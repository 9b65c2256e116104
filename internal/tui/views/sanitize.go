package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops codepoints tcell renders badly (skin tone
// modifiers, zero width joiners, variation selectors) and control characters
// other than newline, which would otherwise corrupt the screen.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if dropRune(r) {
			return -1
		}
		return r
	}, s)
}

func dropRune(r rune) bool {
	switch {
	case r == '\n':
		return false
	case unicode.IsControl(r):
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}
