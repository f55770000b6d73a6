package models

import (
	"net"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	dErrors "gmq/pkg/domain-errors"
)

// DateLayout is the local calendar format of birth dates.
const DateLayout = "02/01/2006"

// MinimumAge is the youngest age allowed to request a certificate.
const MinimumAge = 18

const maxFieldLength = 255

// NormalizeName returns the NFC form of a trimmed name with inner
// whitespace collapsed, so visually identical names compare equal.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// ValidName accepts letters (any script, including accents), spaces,
// hyphens, apostrophes, and periods.
func ValidName(s string) bool {
	if s == "" || len(s) > maxFieldLength {
		return false
	}
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.Is(unicode.Mn, r):
			letters++
		case r == ' ' || r == '-' || r == '\'' || r == '.':
		default:
			return false
		}
	}
	return letters > 0
}

// NormalizeSSN strips separators from a social security number.
func NormalizeSSN(s string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s))
}

// ValidSSN requires nine digits that are not all zero.
func ValidSSN(s string) bool {
	if len(s) != 9 || s == "000000000" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidLicense accepts up to 20 ASCII letters and digits.
func ValidLicense(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}

// ValidEmail requires a bare address with a dotted domain.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

// ValidIP accepts IPv4 and IPv6 literals.
func ValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// ValidFreeText accepts printable text up to the field limit.
func ValidFreeText(s string) bool {
	if strings.TrimSpace(s) == "" || len(s) > maxFieldLength {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// ParseBirthDate parses DD/MM/YYYY as midnight in loc.
func ParseBirthDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}

// AgeAt returns whole years between birth and now, both in the same zone.
func AgeAt(birth, now time.Time) int {
	now = now.In(birth.Location())
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// ValidateBirthDate checks format and minimum age.
func ValidateBirthDate(s string, now time.Time, loc *time.Location) error {
	if strings.TrimSpace(s) == "" {
		return dErrors.NewField(dErrors.AppMissingBirthDate, "birth_date", "birth_date is required")
	}
	birth, err := ParseBirthDate(s, loc)
	if err != nil || birth.After(now) {
		return dErrors.NewField(dErrors.AppInvalidBirthDate, "birth_date", "birth_date must be a past date formatted DD/MM/YYYY")
	}
	if AgeAt(birth, now) < MinimumAge {
		return dErrors.NewField(dErrors.AppNotOldEnough, "birth_date", "requester must be at least 18 years old")
	}
	return nil
}
