package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/booking-iam/internal/model"
)

const userColumns = "id,email,password_hash,role,status,failed_attempts,last_failed_at,locked_until,created_at,updated_at,version"

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// UserRepo is the MySQL credential store backed by the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a new account row.
func (r *UserRepo) Create(ctx context.Context, acc *model.Account) error {
	s := acc.Snapshot()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		s.ID, s.Email, s.PasswordHash, s.Role, string(s.Status), s.FailedAttempts,
		nullTime(s.LastFailedAt), nullTime(s.LockedUntil), s.CreatedAt, s.UpdatedAt, s.Version)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByEmail returns (nil, nil) when no account uses the address.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		model.NormalizeEmail(email))
	return scanAccount(row)
}

// FindByID returns (nil, nil) when the id is unknown.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanAccount(row)
}

// Save writes the account back if its row still carries the version that
// was read, then bumps acc's version. A mismatch returns ErrStaleAccount.
func (r *UserRepo) Save(ctx context.Context, acc *model.Account) error {
	s := acc.Snapshot()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email=?, password_hash=?, role=?, status=?, failed_attempts=?,
		 last_failed_at=?, locked_until=?, updated_at=?, version=version+1
		 WHERE id=? AND version=?`,
		s.Email, s.PasswordHash, s.Role, string(s.Status), s.FailedAttempts,
		nullTime(s.LastFailedAt), nullTime(s.LockedUntil), s.UpdatedAt,
		s.ID, s.Version)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ErrStaleAccount
	}
	acc.SetVersion(s.Version + 1)
	return nil
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		s           model.AccountSnapshot
		status      string
		lastFailed  sql.NullTime
		lockedUntil sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Email, &s.PasswordHash, &s.Role, &status, &s.FailedAttempts,
		&lastFailed, &lockedUntil, &s.CreatedAt, &s.UpdatedAt, &s.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	s.Status = model.AccountStatus(status)
	s.LastFailedAt = timeFromNull(lastFailed)
	s.LockedUntil = timeFromNull(lockedUntil)
	acc, err := model.RestoreAccount(s)
	if err != nil {
		return nil, fmt.Errorf("restore user %s: %w", s.ID, err)
	}
	return acc, nil
}
