// Package phone normalises and formats the phone numbers visitors type into
// booking and support forms. Numbers without a country code are assumed to
// be Uzbek.
package phone

import "strings"

// DefaultCountryCode is used when a number has no country code.
const DefaultCountryCode = "+998"

const minDigits = 7

func digitsOf(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize converts raw input to "+<digits>". Input with an explicit "+"
// keeps its digits; up to nine digits get defaultCode prepended. Input
// without digits yields "".
func Normalize(raw, defaultCode string) string {
	trimmed := strings.TrimSpace(raw)
	digits := digitsOf(trimmed)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}
	if len(digits) <= 9 {
		code := digitsOf(defaultCode)
		if code == "" {
			code = digitsOf(DefaultCountryCode)
		}
		return "+" + code + digits
	}
	return "+" + digits
}

// Format groups a normalised number for display.
func Format(normalized string) string {
	digits := digitsOf(normalized)
	n := len(digits)
	switch {
	case n == 0:
		return ""
	case strings.HasPrefix(digits, "998") && n >= 9:
		body := digits[n-9:]
		return "+998 " + body[:2] + " " + body[2:5] + " " + body[5:7] + " " + body[7:]
	case n > 10:
		body := digits[n-10:]
		return "+" + digits[:n-10] + " " + body[:3] + " " + body[3:6] + " " + body[6:]
	case n > 7:
		body := digits[n-7:]
		return "+" + digits[:n-7] + " " + body[:3] + " " + body[3:5] + " " + body[5:]
	default:
		return "+" + digits
	}
}

// Mask is what the input shows after blur or change.
func Mask(raw, defaultCode string) string {
	normalized := Normalize(raw, defaultCode)
	if normalized == "" {
		return ""
	}
	return Format(normalized)
}

// IsValid reports whether raw holds enough digits to be a phone number.
func IsValid(raw string) bool {
	return len(digitsOf(raw)) >= minDigits
}

// Placeholder is the example number shown in empty inputs.
func Placeholder(defaultCode string) string {
	code := strings.TrimSpace(defaultCode)
	if code == "" {
		code = DefaultCountryCode
	}
	if !strings.HasPrefix(code, "+") {
		code = "+" + code
	}
	return code + " 90 123 45 67"
}
