package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, drops control characters, collapses inner
// whitespace and caps the result at maxLen runes. Accented names and reasons
// are common, so the cap never splits a multi-byte character.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	pendingSpace := false
	for _, r := range strings.TrimSpace(input) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	out := b.String()
	if maxLen > 0 && utf8.RuneCountInString(out) > maxLen {
		out = strings.TrimSpace(string([]rune(out)[:maxLen]))
	}
	return out
}

// NormalizeCouponCode strips every space from a pasted coupon code. Case is
// kept since codes are matched exactly.
func NormalizeCouponCode(input string) string {
	return strings.ReplaceAll(SanitizeString(input, maxCouponCodeLen), " ", "")
}

const maxCouponCodeLen = 64
