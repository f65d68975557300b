package model

import (
	"encoding/hex"
	"regexp"
)

// Matcher compares a raw secret with a stored one-way hash. Account never
// knows which algorithm produced the hash.
type Matcher interface {
	Matches(rawSecret, storedHash string) bool
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(rawSecret, storedHash string) bool

func (f MatcherFunc) Matches(rawSecret, storedHash string) bool { return f(rawSecret, storedHash) }

// SecretHasher turns an opaque refresh secret into its stored digest. It must
// be deterministic and one-way.
type SecretHasher interface {
	Hash(rawSecret string) TokenHash
}

var bcryptPattern = regexp.MustCompile(`^\$2[aby]\$(0[4-9]|[12][0-9]|3[01])\$[./A-Za-z0-9]{53}$`)

// PasswordHash is a one-way password credential. It never holds plaintext.
type PasswordHash struct {
	value string
}

// NewPasswordHash accepts only well-formed bcrypt hashes. Use it for freshly
// encoded passwords.
func NewPasswordHash(hash string) (PasswordHash, error) {
	if !bcryptPattern.MatchString(hash) {
		return PasswordHash{}, preconditionf("password hash is not a bcrypt hash")
	}
	return PasswordHash{value: hash}, nil
}

// PasswordHashFromTrusted wraps a hash read back from storage. Only emptiness
// is checked.
func PasswordHashFromTrusted(hash string) (PasswordHash, error) {
	if hash == "" {
		return PasswordHash{}, preconditionf("password hash is empty")
	}
	return PasswordHash{value: hash}, nil
}

// Matches delegates the comparison to m.
func (h PasswordHash) Matches(rawSecret string, m Matcher) bool {
	return m.Matches(rawSecret, h.value)
}

func (h PasswordHash) Value() string { return h.value }

func (h PasswordHash) IsZero() bool { return h.value == "" }

func (h PasswordHash) String() string { return "PasswordHash[PROTECTED]" }

// TokenHashLength is the hex length of a SHA-256 digest.
const TokenHashLength = 64

// TokenHash is the stored digest of a refresh secret.
type TokenHash struct {
	value string
}

// TokenHashFromHex wraps a hex digest, validating its shape.
func TokenHashFromHex(digest string) (TokenHash, error) {
	if len(digest) != TokenHashLength {
		return TokenHash{}, preconditionf("token hash must be %d hex characters", TokenHashLength)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return TokenHash{}, preconditionf("token hash is not hex")
	}
	return TokenHash{value: digest}, nil
}

func (t TokenHash) Value() string { return t.value }

func (t TokenHash) IsZero() bool { return t.value == "" }

// Masked is the first 8 hex characters, enough to correlate log lines.
func (t TokenHash) Masked() string {
	if len(t.value) < 8 {
		return "..."
	}
	return t.value[:8] + "..."
}

func (t TokenHash) String() string { return "TokenHash[PROTECTED]" }
