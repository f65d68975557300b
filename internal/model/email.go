package model

import (
	"regexp"
	"strings"
)

// MaxEmailLength bounds users.email.
const MaxEmailLength = 255

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Email is a validated, lower-cased email address. Two addresses that differ
// only in case or surrounding whitespace are the same Email.
type Email struct {
	value string
}

// NormalizeEmail trims and lower-cases raw without validating it. Lookups use
// it so a malformed address simply finds nothing.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseEmail validates raw and returns its normalized form.
func ParseEmail(raw string) (Email, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > MaxEmailLength || !emailPattern.MatchString(trimmed) {
		return Email{}, ErrInvalidEmail
	}
	return Email{value: strings.ToLower(trimmed)}, nil
}

// Value is the normalized address, for persistence.
func (e Email) Value() string { return e.value }

// IsZero reports whether e was never set.
func (e Email) IsZero() bool { return e.value == "" }

// Masked hides the local part: "user@example.com" becomes "u***@example.com".
func (e Email) Masked() string { return MaskEmail(e.value) }

// String is masked so an Email can be passed to a logger safely.
func (e Email) String() string { return e.Masked() }

// MaskEmail masks an arbitrary, possibly malformed, address for logging.
// Input that is not shaped like an address is hidden completely: callers
// sometimes type a password into the email field.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.IndexByte(email[at+1:], '@') >= 0 {
		return "***"
	}
	return email[:1] + "***@" + email[at+1:]
}
