package provider

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

const (
	DefaultCountryCode = "91"

	nationalNumberDigits = 10
	minE164Digits        = 8
	maxE164Digits        = 15
)

// NormalizePhone converts a user-entered mobile number into E.164 form. Numbers
// without an international prefix are assumed to belong to countryCode.
func NormalizePhone(raw, countryCode string) (string, error) {
	countryCode = strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: phone number is empty", domain.ErrValidation)
	}

	international := strings.HasPrefix(trimmed, "+")

	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("%w: invalid phone number %q", domain.ErrValidation, raw)
		}
	}
	digits := b.String()

	switch {
	case international:
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = countryCode + strings.TrimLeft(digits, "0")
	case len(digits) > nationalNumberDigits && strings.HasPrefix(digits, countryCode):
	default:
		digits = countryCode + digits
	}

	if len(digits) < minE164Digits || len(digits) > maxE164Digits {
		return "", fmt.Errorf("%w: invalid phone number %q", domain.ErrValidation, raw)
	}

	return "+" + digits, nil
}
