// Package phone normalizes the point-of-contact numbers registry records carry.
package phone

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// Registry numbers without a country code are US numbers.
const defaultRegion = "US"

// NormalizeE164 formats a registry phone number as E.164 and drops any
// extension. Placeholders without a digit ("N/A", "none") become "". A number
// that does not validate is kept trimmed so an operator can still read it.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if !strings.ContainsFunc(trimmed, unicode.IsDigit) {
		return ""
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
