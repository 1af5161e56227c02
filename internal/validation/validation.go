package validation

import (
	"regexp"
	"strings"
	"unicode"
)

// Violations maps a field name to an error code (required, invalid_email, siret_length, ...).
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Merge copies other into v, keeping codes already present in v.
func (v Violations) Merge(other Violations) {
	for k, code := range other {
		if _, ok := v[k]; !ok {
			v[k] = code
		}
	}
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_value"
}

func RangeInt(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

// IsEmail reports whether s has the local@domain.tld shape.
func IsEmail(s string) bool { return emailRe.MatchString(s) }

func Email(field, value string, v Violations) {
	if !IsEmail(value) {
		v[field] = "invalid_email"
	}
}

// NormalizeSIRET strips whitespace separators ("123 456 789 00012" -> "12345678900012").
// The result is not validated.
func NormalizeSIRET(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// SIRET validates an already normalized siret. Empty values are accepted;
// pair with Required when the field is mandatory.
func SIRET(field, normalized string, v Violations) {
	if normalized == "" {
		return
	}
	if len(normalized) != 14 {
		v[field] = "siret_length"
		return
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			v[field] = "siret_digits"
			return
		}
	}
}

// FormatSIRET renders the display form "000 000 000 00000". Inputs that are not
// 14 digits are returned unchanged.
func FormatSIRET(normalized string) string {
	if len(normalized) != 14 {
		return normalized
	}
	return normalized[:3] + " " + normalized[3:6] + " " + normalized[6:9] + " " + normalized[9:]
}
