package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/iliyamo/booking-iam/internal/model"
)

// refreshSecretBytes is the entropy of an opaque refresh secret (96 hex chars).
const refreshSecretBytes = 48

// NewRefreshSecret returns a cryptographically random opaque refresh secret.
// It is handed to the client once; only its digest is stored.
func NewRefreshSecret() (string, error) {
	return randomHex(refreshSecretBytes)
}

// HashRefreshRaw returns the SHA-256 digest of the raw refresh secret.
// Storing only the digest means a leaked refresh_tokens table cannot be
// replayed.
func HashRefreshRaw(raw string) model.TokenHash {
	sum := sha256.Sum256([]byte(raw))
	// a hex SHA-256 digest always satisfies TokenHashFromHex
	h, _ := model.TokenHashFromHex(hex.EncodeToString(sum[:]))
	return h
}

// SHA256Hasher adapts HashRefreshRaw to model.SecretHasher.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(rawSecret string) model.TokenHash { return HashRefreshRaw(rawSecret) }

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
