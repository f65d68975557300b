package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken models an entry in the `refresh_tokens` table. The plain
// secret is never stored, only its digest. userID is used for ownership
// checks; revokedAt is nil while the token is active.
type RefreshToken struct {
	id        string
	userID    string
	tokenHash TokenHash
	expiresAt time.Time
	revokedAt *time.Time
	createdAt time.Time
}

// RefreshTokenSnapshot is the flat persisted form of a RefreshToken.
type RefreshTokenSnapshot struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// NewRefreshToken mints a token record for a freshly issued secret.
// expiresAt must be strictly after now.
func NewRefreshToken(userID string, hash TokenHash, expiresAt, now time.Time) (*RefreshToken, error) {
	if userID == "" {
		return nil, preconditionf("refresh token user id is required")
	}
	if hash.IsZero() {
		return nil, preconditionf("refresh token hash is required")
	}
	if !expiresAt.After(now) {
		return nil, preconditionf("refresh token expiry must be after creation time")
	}
	return &RefreshToken{
		id:        uuid.NewString(),
		userID:    userID,
		tokenHash: hash,
		expiresAt: expiresAt,
		createdAt: now,
	}, nil
}

// RestoreRefreshToken rebuilds a token read from storage. Expired and
// revoked rows are accepted.
func RestoreRefreshToken(s RefreshTokenSnapshot) (*RefreshToken, error) {
	if s.ID == "" || s.UserID == "" {
		return nil, preconditionf("refresh token id and user id are required")
	}
	hash, err := TokenHashFromHex(s.TokenHash)
	if err != nil {
		return nil, err
	}
	if s.ExpiresAt.IsZero() {
		return nil, preconditionf("refresh token expiry is required")
	}
	return &RefreshToken{
		id:        s.ID,
		userID:    s.UserID,
		tokenHash: hash,
		expiresAt: s.ExpiresAt,
		revokedAt: copyTime(s.RevokedAt),
		createdAt: s.CreatedAt,
	}, nil
}

func (t *RefreshToken) Snapshot() RefreshTokenSnapshot {
	return RefreshTokenSnapshot{
		ID:        t.id,
		UserID:    t.userID,
		TokenHash: t.tokenHash.Value(),
		ExpiresAt: t.expiresAt,
		RevokedAt: copyTime(t.revokedAt),
		CreatedAt: t.createdAt,
	}
}

// IsValid reports whether the token can still be redeemed: not revoked and
// now is before expiresAt.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.IsRevoked() && now.Before(t.expiresAt)
}

func (t *RefreshToken) IsRevoked() bool { return t.revokedAt != nil }

// IsExpired is derived from the clock and never stored.
func (t *RefreshToken) IsExpired(now time.Time) bool { return !now.Before(t.expiresAt) }

// Revoke sets revokedAt on the first call only and reports whether this
// call did it.
func (t *RefreshToken) Revoke(now time.Time) bool {
	if t.revokedAt != nil {
		return false
	}
	t.revokedAt = timePtr(now)
	return true
}

// RevokedAt returns false while the token has never been revoked.
func (t *RefreshToken) RevokedAt() (time.Time, bool) { return derefTime(t.revokedAt) }

func (t *RefreshToken) ID() string { return t.id }
func (t *RefreshToken) UserID() string { return t.userID }
func (t *RefreshToken) TokenHash() TokenHash { return t.tokenHash }
func (t *RefreshToken) ExpiresAt() time.Time { return t.expiresAt }
func (t *RefreshToken) CreatedAt() time.Time { return t.createdAt }
