package utils

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/booking-iam/internal/model"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// BcryptMatcher is the model.Matcher used for users.password_hash.
type BcryptMatcher struct{}

func (BcryptMatcher) Matches(rawSecret, storedHash string) bool {
	return VerifyPassword(storedHash, rawSecret)
}

// BcryptEncoder produces new password hashes. A zero Cost means
// bcrypt.DefaultCost.
type BcryptEncoder struct {
	Cost int
}

// Encode hashes plain and wraps it as a model.PasswordHash.
func (e BcryptEncoder) Encode(plain string) (model.PasswordHash, error) {
	cost := e.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := HashPassword(plain, cost)
	if err != nil {
		return model.PasswordHash{}, err
	}
	return model.NewPasswordHash(h)
}
