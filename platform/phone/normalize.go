// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when callers pass an empty region.
const DefaultRegion = "AL"

const (
	minDigits = 10
	maxDigits = 15
)

var (
	ErrEmpty        = errors.New("phone number is empty")
	ErrUnparseable  = errors.New("phone number cannot be parsed")
	ErrInvalidRange = errors.New("phone number must have 10 to 15 digits")
)

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, regionOrDefault(region))
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Validate reports whether input is a usable outbound number: it must parse
// for the region and carry 10 to 15 digits in international format.
func Validate(input, region string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrEmpty
	}

	number, err := phonenumbers.Parse(trimmed, regionOrDefault(region))
	if err != nil {
		return "", ErrUnparseable
	}

	formatted := phonenumbers.Format(number, phonenumbers.E164)
	digits := countDigits(formatted)
	if digits < minDigits || digits > maxDigits {
		return "", ErrInvalidRange
	}
	return formatted, nil
}

func regionOrDefault(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return DefaultRegion
	}
	return region
}

func countDigits(value string) int {
	n := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
