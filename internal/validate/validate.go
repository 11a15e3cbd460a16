package validate

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reUsername = regexp.MustCompile(`^[A-Za-z0-9._@+-]{3,50}$`)
	rePhone    = regexp.MustCompile(`^[0-9]{9,11}$`)
	reRegNo    = regexp.MustCompile(`^[0-9]{10}$`)
	reShipping = regexp.MustCompile(`^(PARCEL|DELIVERY)$`)
)

// Username validates a login id: letters, digits and ._@+- up to 50 chars.
func Username(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reUsername.MatchString(s)
}

// Phone accepts 9-11 digits after dropping hyphens and spaces.
func Phone(s string) (string, bool) {
	s = strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s))
	return s, rePhone.MatchString(s)
}

// RegistrationNumber validates a 10-digit company registration number.
func RegistrationNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reRegNo.MatchString(s)
}

func ShippingMethod(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reShipping.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 50 {
		return "", false
	}
	return s, true
}

// Password enforces length 8-20 with lower, upper, digit and symbol.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 20 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}

// PositiveInt parses a path or query id; anything but a positive integer fails.
func PositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// IntOr parses s, falling back to def when it is empty or malformed.
func IntOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
