package domain

import (
	"regexp"
	"strings"
)

var (
	canonicalPhoneRe = regexp.MustCompile(`^\+7\d{10}$`)
	localPhoneRe     = regexp.MustCompile(`^8\d{10}$`)
	barePhoneRe      = regexp.MustCompile(`^7\d{10}$`)
)

// NormalizePhone converts a Russian mobile number typed by a user into the
// canonical "+7XXXXXXXXXX" form. Surrounding whitespace is trimmed; anything
// inside the number, including spaces, makes it invalid. Accepted shapes are
// "+7", "8" or "7" followed by ten digits.
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)

	switch {
	case canonicalPhoneRe.MatchString(phone):
		return phone, nil
	case localPhoneRe.MatchString(phone):
		return "+7" + phone[1:], nil
	case barePhoneRe.MatchString(phone):
		return "+" + phone, nil
	}
	return "", ErrInvalidPhoneFormat
}
