package phone

import "strings"

// Normalize converts raw phone input into a comparable +-prefixed form.
//
// Rules, in order:
//   - strip every non-digit character except a leading +
//   - already + prefixed: keep the digits as given
//   - exactly 10 digits: assume US/Canada and prefix +1
//   - 11+ digits starting with 1: treat the 1 as a country code and prefix +
//   - anything else: prefix +1 as a last-resort default
//
// The +1 fallback can mis-tag non-US numbers that arrive without a leading +;
// that behavior is intentional and relied on by stored data, so do not
// "fix" it without a migration.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	cleaned := digits.String()

	switch {
	case hasPlus:
		return "+" + cleaned
	case len(cleaned) == 10:
		return "+1" + cleaned
	case len(cleaned) >= 11 && strings.HasPrefix(cleaned, "1"):
		return "+" + cleaned
	default:
		return "+1" + cleaned
	}
}

// Plausible reports whether a normalized number carries enough digits to be
// dialable. Used by extraction issue detection; matching never depends on it.
func Plausible(normalized string) bool {
	digits := strings.TrimPrefix(normalized, "+")
	return len(digits) >= 10 && len(digits) <= 15
}
