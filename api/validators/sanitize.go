package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims surrounding whitespace and caps the result at maxLen
// bytes without splitting a multi-byte rune. maxLen <= 0 disables the cap.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || len(trimmed) <= maxLen {
		return trimmed
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}
