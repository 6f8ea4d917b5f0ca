// Package phone implements the lightweight knowledge factor for share
// links: the customer proves possession of the quotation's phone number by
// submitting its last four digits.
package phone

import (
	"regexp"
	"strings"
)

const digitCount = 4

var digitsOnlyRegex = regexp.MustCompile(`^\d{4}$`)

// Validation error messages, surfaced verbatim to the customer form.
const (
	MsgRequired    = "Phone digits are required"
	MsgNumericOnly = "Please enter numeric digits only"
	MsgExactlyFour = "Please enter exactly 4 digits"
	MsgOnlyFour    = "Please enter only 4 digits"
)

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LastFourDigits normalizes a stored phone number down to its trailing four
// digits, left-padded with zeros. A number with no digits at all yields
// "0000".
func LastFourDigits(phoneNumber string) string {
	digits := stripNonDigits(phoneNumber)
	if len(digits) > digitCount {
		digits = digits[len(digits)-digitCount:]
	}
	for len(digits) < digitCount {
		digits = "0" + digits
	}
	return digits
}

// IsValidDigits reports whether s is exactly four digits.
func IsValidDigits(s string) bool {
	return digitsOnlyRegex.MatchString(s)
}

// Sanitize strips non-digits and caps the result at four characters. It
// never fails; garbage in yields an empty string.
func Sanitize(input string) string {
	digits := stripNonDigits(input)
	if len(digits) > digitCount {
		digits = digits[:digitCount]
	}
	return digits
}

// Verify compares a submitted digit string against the stored phone number.
// The submission is sanitized first; anything that does not survive as a
// strict four-digit string is a mismatch.
func Verify(providedDigits, storedPhoneNumber string) bool {
	sanitized := Sanitize(providedDigits)
	if !IsValidDigits(sanitized) {
		return false
	}
	return sanitized == LastFourDigits(storedPhoneNumber)
}

type ValidationResult struct {
	IsValid   bool
	Error     string
	Sanitized string
}

// ValidateInput runs layered validation over the raw form value and returns
// a specific message per failure mode. The length branches look at the
// stripped-but-untruncated digit string, so over-long submissions are
// reported rather than silently capped.
func ValidateInput(raw string) ValidationResult {
	if raw == "" {
		return ValidationResult{Error: MsgRequired}
	}
	digits := stripNonDigits(raw)
	switch {
	case len(digits) == 0:
		return ValidationResult{Error: MsgNumericOnly}
	case len(digits) < digitCount:
		return ValidationResult{Error: MsgExactlyFour}
	case len(digits) > digitCount:
		return ValidationResult{Error: MsgOnlyFour}
	}
	return ValidationResult{IsValid: true, Sanitized: digits}
}
