package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables used by the credential and token stores.
// refresh_tokens.user_id has no foreign key: tokens only reference their
// owner for lookups.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              CHAR(36)     NOT NULL PRIMARY KEY,
		email           VARCHAR(255) NOT NULL,
		password_hash   VARCHAR(255) NOT NULL,
		role            VARCHAR(32)  NOT NULL DEFAULT 'user',
		status          VARCHAR(32)  NOT NULL,
		failed_attempts INT          NOT NULL DEFAULT 0,
		last_failed_at  DATETIME(6)  NULL,
		locked_until    DATETIME(6)  NULL,
		created_at      DATETIME(6)  NOT NULL,
		updated_at      DATETIME(6)  NOT NULL,
		version         BIGINT       NOT NULL DEFAULT 0,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         CHAR(36)    NOT NULL PRIMARY KEY,
		user_id    CHAR(36)    NOT NULL,
		token_hash CHAR(64)    NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		revoked_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_user (user_id),
		KEY idx_refresh_tokens_expires (expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables.  It never alters existing ones.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
