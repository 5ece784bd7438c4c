// Package identity normalizes customer contact details and hashes them for
// the Meta Conversions API. Empty input always hashes to "".
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// DefaultCountryCode is prefixed to bare local mobile numbers.
const DefaultCountryCode = "20"

// Hash returns the SHA-256 hex digest of s, or "" when s is empty.
func Hash(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashEmail hashes the normalized email.
func HashEmail(email string) string {
	return Hash(NormalizeEmail(email))
}

// NormalizePhone reduces a phone number to digits with a country code.
//
//	+20 100 123 4567 -> 201001234567
//	0020 100 123 4567 -> 201001234567
//	01001234567       -> 201001234567
//	1001234567        -> <countryCode>1001234567
func NormalizePhone(raw, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	digits = strings.TrimPrefix(digits, "00")

	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "01"):
		return countryCode + digits[1:]
	case len(digits) == 10 && strings.HasPrefix(digits, "1"):
		return countryCode + digits
	}
	return digits
}

// HashPhone hashes the normalized phone number.
func HashPhone(raw, countryCode string) string {
	return Hash(NormalizePhone(raw, countryCode))
}

// NormalizeName lowercases a name and drops punctuation.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, name)
}

// HashName hashes a first or last name.
func HashName(name string) string {
	return Hash(NormalizeName(name))
}

// NormalizeCity lowercases a city and removes spaces and punctuation.
func NormalizeCity(city string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, city)
}

// HashCity hashes a city name.
func HashCity(city string) string {
	return Hash(NormalizeCity(city))
}

// HashCountry hashes a two-letter ISO country code.
func HashCountry(country string) string {
	return Hash(strings.ToLower(strings.TrimSpace(country)))
}

// HashExternalID hashes the platform's own customer identifier.
func HashExternalID(id string) string {
	return Hash(strings.TrimSpace(id))
}

// NewEventID derives a 32-character hex event ID from the event name, the
// customer identity and the event time, salted so repeated calls differ.
func NewEventID(eventName, identity string, ts time.Time) string {
	seed := fmt.Sprintf("%s|%s|%d|%s", eventName, identity, ts.UnixMilli(), uuid.NewString())
	return Hash(seed)[:32]
}
