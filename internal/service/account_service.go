package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-iam/internal/model"
	"github.com/iliyamo/booking-iam/internal/queue"
)

// AccountService covers registration and the admin operations on an
// account. Each operation loads the account fresh, applies one state change
// and saves it under the store's version check.
type AccountService struct {
	users   CredentialStore
	tokens  TokenStore
	encoder PasswordEncoder
	events  EventPublisher
	log     zerolog.Logger
	now     func() time.Time
}

func NewAccountService(users CredentialStore, tokens TokenStore, encoder PasswordEncoder, events EventPublisher, log zerolog.Logger) *AccountService {
	return &AccountService{
		users:   users,
		tokens:  tokens,
		encoder: encoder,
		events:  events,
		log:     log.With().Str("component", "accounts").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// Register creates an Active account with the default role.
func (s *AccountService) Register(ctx context.Context, email, password string) (*model.Account, error) {
	return s.create(ctx, email, password, model.RoleUser)
}

// EnsureAdmin creates an admin account for email unless one with that email
// already exists. The existing account is returned untouched.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (*model.Account, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if existing != nil {
		if existing.Role() != model.RoleAdmin {
			s.log.Warn().Str("user_id", existing.ID()).Str("email", existing.Email().Masked()).Str("role", existing.Role()).
				Msg("admin bootstrap email belongs to a non-admin account; no admin was created")
		}
		return existing, nil
	}
	return s.create(ctx, email, password, model.RoleAdmin)
}

func (s *AccountService) create(ctx context.Context, email, password, role string) (*model.Account, error) {
	addr, err := model.ParseEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.encoder.Encode(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc, err := model.NewAccount(addr, hash, role, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, acc); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", acc.ID()).Str("email", addr.Masked()).Str("role", role).Msg("account registered")
	return acc, nil
}

// Unlock lifts a lock and clears the failure counters. Unlocking an account
// that is not Locked changes nothing.
func (s *AccountService) Unlock(ctx context.Context, id string) (*model.Account, error) {
	return s.mutate(ctx, id, "unlock", func(acc *model.Account, now time.Time) error {
		acc.Unlock(now)
		return nil
	})
}

// Lock locks the account for d and revokes its refresh tokens.
func (s *AccountService) Lock(ctx context.Context, id string, d time.Duration) (*model.Account, error) {
	acc, err := s.mutate(ctx, id, "lock", func(acc *model.Account, now time.Time) error {
		return acc.Lock(d, now)
	})
	if err != nil {
		return nil, err
	}
	until, ok := acc.LockedUntil()
	s.publish(ctx, queue.AccountLocked(acc.ID(), queue.LockReasonAdminAction, until, ok, s.now()))
	return acc, s.revokeSessions(ctx, acc.ID())
}

// LockIndefinitely locks the account until an explicit unlock and revokes
// its refresh tokens.
func (s *AccountService) LockIndefinitely(ctx context.Context, id string) (*model.Account, error) {
	acc, err := s.mutate(ctx, id, "lock_indefinitely", func(acc *model.Account, now time.Time) error {
		acc.LockIndefinitely(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.AccountLocked(acc.ID(), queue.LockReasonAdminAction, time.Time{}, false, s.now()))
	return acc, s.revokeSessions(ctx, acc.ID())
}

// Suspend suspends the account and revokes all of its refresh tokens.
func (s *AccountService) Suspend(ctx context.Context, id string) (*model.Account, error) {
	acc, err := s.mutate(ctx, id, "suspend", func(acc *model.Account, now time.Time) error {
		acc.Suspend(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, s.revokeSessions(ctx, acc.ID())
}

// Reactivate returns a Suspended account to Active. Any other status is a
// precondition error.
func (s *AccountService) Reactivate(ctx context.Context, id string) (*model.Account, error) {
	return s.mutate(ctx, id, "reactivate", func(acc *model.Account, now time.Time) error {
		return acc.Reactivate(now)
	})
}

// ChangePassword replaces the credential, lifts any lock and revokes all
// refresh tokens so existing sessions must log in again.
func (s *AccountService) ChangePassword(ctx context.Context, id, newPassword string) (*model.Account, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	hash, err := s.encoder.Encode(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc, err := s.mutate(ctx, id, "change_password", func(acc *model.Account, now time.Time) error {
		return acc.ChangeCredential(hash, now)
	})
	if err != nil {
		return nil, err
	}
	return acc, s.revokeSessions(ctx, acc.ID())
}

// Get returns the account or ErrAccountNotFound.
func (s *AccountService) Get(ctx context.Context, id string) (*model.Account, error) {
	acc, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (s *AccountService) mutate(ctx context.Context, id, action string, fn func(*model.Account, time.Time) error) (*model.Account, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(acc, s.now()); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, acc); err != nil {
		return nil, fmt.Errorf("save account %s: %w", id, err)
	}
	s.log.Info().Str("user_id", id).Str("action", action).Str("status", acc.Status().String()).Msg("account updated")
	return acc, nil
}

func (s *AccountService) revokeSessions(ctx context.Context, id string) error {
	n, err := s.tokens.RevokeAllForUser(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("revoke sessions of %s: %w", id, err)
	}
	s.log.Info().Str("user_id", id).Int64("revoked", n).Msg("refresh tokens revoked")
	return nil
}

func (s *AccountService) publish(ctx context.Context, ev queue.Event) {
	publishBestEffort(ctx, s.events, ev, s.log)
}

func validatePassword(p string) error {
	if len(p) < MinPasswordLength || len(p) > MaxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
