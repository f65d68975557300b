package service

import (
	"context"
	"time"

	"github.com/iliyamo/booking-iam/internal/model"
	"github.com/iliyamo/booking-iam/internal/queue"
	"github.com/iliyamo/booking-iam/internal/utils"
)

// CredentialStore loads and persists accounts. Find methods return
// (nil, nil) for unknown keys. Save must reject a write based on a stale
// read (repository.ErrStaleAccount).
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	FindByID(ctx context.Context, id string) (*model.Account, error)
	Create(ctx context.Context, acc *model.Account) error
	Save(ctx context.Context, acc *model.Account) error
}

// TokenStore persists refresh tokens by digest. Saving a revoked token must
// fail with repository.ErrRevokeConflict when the stored row is already
// revoked, so that only one rotation of a token can succeed.
type TokenStore interface {
	FindByHash(ctx context.Context, hash model.TokenHash) (*model.RefreshToken, error)
	Save(ctx context.Context, tok *model.RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

// TokenIssuer signs access tokens and generates opaque refresh secrets.
type TokenIssuer interface {
	Issue(accountID string, roles []string, accessTTL, refreshTTL time.Duration) (utils.IssuedTokens, error)
}

// PasswordEncoder hashes new passwords.
type PasswordEncoder interface {
	Encode(plain string) (model.PasswordHash, error)
}

// EventPublisher emits IAM events. Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}
