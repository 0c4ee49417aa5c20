// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "CR"

// parse accepts WhatsApp-style numbers ("50688887777") as well as E.164
// and national formats.
func parse(input, region string) (*phonenumbers.PhoneNumber, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, false
	}
	if region == "" {
		region = defaultRegion
	}

	candidates := []string{trimmed}
	if !strings.HasPrefix(trimmed, "+") {
		candidates = append([]string{"+" + trimmed}, candidates...)
	}

	for _, candidate := range candidates {
		number, err := phonenumbers.Parse(candidate, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(number) {
			return number, true
		}
	}
	return nil, false
}

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input, region string) string {
	number, ok := parse(input, region)
	if !ok {
		return strings.TrimSpace(input)
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// DisplayName formats a number for humans ("+506 8888 7777").
// If parsing fails, it returns the trimmed input.
func DisplayName(input, region string) string {
	number, ok := parse(input, region)
	if !ok {
		return strings.TrimSpace(input)
	}
	return phonenumbers.Format(number, phonenumbers.INTERNATIONAL)
}
