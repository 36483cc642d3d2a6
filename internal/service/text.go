package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the longest message accepted from a channel.
const MaxMessageLength = 500

var (
	phonePattern = regexp.MustCompile(`^\+60\d{9,11}$`)
	scriptTags   = regexp.MustCompile(`(?is)<script.*?</script>`)
	htmlTags     = regexp.MustCompile(`(?s)<.*?>`)
)

// NormalizePhoneNumber converts a Malaysian number to +60 form. It accepts
// +60..., 60..., 0... and bare 9 to 11 digit subscriber numbers, with any
// separators. An empty string is returned when the input cannot be mapped.
func NormalizePhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "60"):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+60" + digits[1:]
	case len(digits) >= 9 && len(digits) <= 11:
		return "+60" + digits
	}
	return ""
}

// ValidPhoneNumber reports whether phone is a canonical Malaysian number.
func ValidPhoneNumber(phone string) bool {
	return phonePattern.MatchString(phone)
}

// SanitizeMessage truncates the message and strips script blocks and HTML
// tags.
func SanitizeMessage(message string) string {
	if utf8.RuneCountInString(message) > MaxMessageLength {
		message = string([]rune(message)[:MaxMessageLength])
	}
	message = scriptTags.ReplaceAllString(message, "")
	message = htmlTags.ReplaceAllString(message, "")
	return strings.TrimSpace(message)
}

// LooksLikePIN reports whether message is exactly length digits once
// surrounding whitespace is removed.
func LooksLikePIN(message string, length int) bool {
	message = strings.TrimSpace(message)
	if length <= 0 || len(message) != length {
		return false
	}
	for _, r := range message {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CustomerIDFromPhone derives the placeholder id used for unknown numbers.
func CustomerIDFromPhone(phone string) string {
	return "CUST-" + strings.TrimPrefix(phone, "+")
}
