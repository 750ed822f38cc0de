package domain

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidPhone  = errors.New("please enter a valid Kenyan phone number (e.g., 0700000000)")
	ErrInvalidAmount = errors.New("please enter a valid amount (minimum KES 1)")
)

var (
	nonDigit     = regexp.MustCompile(`\D`)
	kenyanMSISDN = regexp.MustCompile(`^(254|0)(7|1)\d{8}$`)
)

// DigitsOnly strips every non-digit character from s.
func DigitsOnly(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// ValidPhone reports whether phone is a Kenyan mobile number once separators
// and a leading + are removed: 07XXXXXXXX, 01XXXXXXXX, 2547XXXXXXXX or 2541XXXXXXXX.
func ValidPhone(phone string) bool {
	return kenyanMSISDN.MatchString(DigitsOnly(phone))
}

// NormalizePhone converts phone to international form without separators.
// It is idempotent.
func NormalizePhone(phone string) string {
	clean := DigitsOnly(phone)
	switch {
	case strings.HasPrefix(clean, "0"):
		return CountryCode + clean[1:]
	case strings.HasPrefix(clean, CountryCode):
		return clean
	default:
		return CountryCode + clean
	}
}
