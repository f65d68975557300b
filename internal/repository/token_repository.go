package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/booking-iam/internal/model"
)

const tokenColumns = "id,user_id,token_hash,expires_at,revoked_at,created_at"

// TokenRepo persists refresh tokens (single 'token_hash' column, never the
// raw secret).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// FindByHash returns (nil, nil) when no row has the digest. Revoked and
// expired rows are returned as-is.
func (r *TokenRepo) FindByHash(ctx context.Context, hash model.TokenHash) (*model.RefreshToken, error) {
	var (
		s         model.RefreshTokenSnapshot
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		hash.Value()).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &revokedAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select refresh token: %w", err)
	}
	s.RevokedAt = timeFromNull(revokedAt)
	tok, err := model.RestoreRefreshToken(s)
	if err != nil {
		return nil, fmt.Errorf("restore refresh token %s: %w", s.ID, err)
	}
	return tok, nil
}

// Save inserts an active token, or persists the revocation of a revoked
// one. The revoke only applies while revoked_at is still NULL, so when two
// requests revoke the same token the loser gets ErrRevokeConflict.
func (r *TokenRepo) Save(ctx context.Context, tok *model.RefreshToken) error {
	s := tok.Snapshot()
	if s.RevokedAt == nil {
		_, err := r.DB.ExecContext(ctx,
			"INSERT INTO refresh_tokens ("+tokenColumns+") VALUES (?,?,?,?,?,?)",
			s.ID, s.UserID, s.TokenHash, s.ExpiresAt, nil, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert refresh token: %w", err)
		}
		return nil
	}

	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL",
		*s.RevokedAt, s.ID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if n == 0 {
		return ErrRevokeConflict
	}
	return nil
}

// RevokeAllForUser revokes all user's active tokens and returns how many
// were revoked.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		now, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes rows that expired before cutoff. Revocation history
// younger than cutoff is kept.
func (r *TokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timeFromNull(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
