package service

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/booking-iam/internal/model"
	"github.com/iliyamo/booking-iam/internal/queue"
	"github.com/iliyamo/booking-iam/internal/repository"
	"github.com/iliyamo/booking-iam/internal/utils"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.accounts.Register(ctx, "  User@Example.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, testEmail, acc.Email().Value())
	assert.Equal(t, model.StatusActive, acc.Status())
	assert.NotEqual(t, testPassword, acc.Credential().Value())

	_, err = f.accounts.Register(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	_, err = f.accounts.Register(ctx, "not-an-email", testPassword)
	assert.ErrorIs(t, err, model.ErrInvalidEmail)

	_, err = f.accounts.Register(ctx, "other@example.com", "short")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.ErrorIs(t, err, model.ErrPrecondition)
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.accounts.EnsureAdmin(ctx, "admin@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role())

	again, err := f.accounts.EnsureAdmin(ctx, "ADMIN@example.com", "another-password")
	require.NoError(t, err)
	assert.Equal(t, admin.ID(), again.ID())
}

func TestEnsureAdminWarnsOnNonAdminAccount(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	accounts := NewAccountService(f.users, f.tokens, utils.BcryptEncoder{Cost: bcrypt.MinCost}, nil, zerolog.New(&buf))
	acc := f.register(t)

	got, err := accounts.EnsureAdmin(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, acc.ID(), got.ID())
	assert.Equal(t, model.RoleUser, got.Role())
	assert.Contains(t, buf.String(), "non-admin account")
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.NotContains(t, buf.String(), testEmail)
}

func TestAdminLockRevokesSessions(t *testing.T) {
	ctx := context.Background()
	for name, lock := range map[string]func(f *fixture, id string) error{
		"timed": func(f *fixture, id string) error {
			_, err := f.accounts.Lock(ctx, id, time.Hour)
			return err
		},
		"indefinite": func(f *fixture, id string) error {
			_, err := f.accounts.LockIndefinitely(ctx, id)
			return err
		},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			acc := f.register(t)
			pair, err := f.login(testPassword)
			require.NoError(t, err)

			require.NoError(t, lock(f, acc.ID()))
			_, err = f.auth.Refresh(ctx, pair.RefreshToken)
			requireAuthError(t, err, KindUnauthorized, "invalid_credentials")
		})
	}
}

func TestAdminLockUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.register(t)

	_, err := f.accounts.Lock(ctx, acc.ID(), 0)
	assert.ErrorIs(t, err, model.ErrPrecondition)

	locked, err := f.accounts.Lock(ctx, acc.ID(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLocked, locked.Status())
	_, err = f.login(testPassword)
	requireAuthError(t, err, KindForbidden, "account_locked")

	_, err = f.accounts.Unlock(ctx, acc.ID())
	require.NoError(t, err)
	_, err = f.login(testPassword)
	require.NoError(t, err)

	indefinite, err := f.accounts.LockIndefinitely(ctx, acc.ID())
	require.NoError(t, err)
	assert.True(t, indefinite.IsIndefinitelyLocked())

	types := f.events.types()
	count := 0
	for _, ty := range types {
		if ty == queue.EventAccountLocked {
			count++
		}
	}
	assert.Equal(t, 2, count)

	_, err = f.accounts.Unlock(ctx, "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSuspendRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.register(t)
	pair, err := f.login(testPassword)
	require.NoError(t, err)

	_, err = f.accounts.Reactivate(ctx, acc.ID())
	assert.ErrorIs(t, err, model.ErrPrecondition, "active accounts cannot be reactivated")

	_, err = f.accounts.Suspend(ctx, acc.ID())
	require.NoError(t, err)
	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	requireAuthError(t, err, KindUnauthorized, "invalid_credentials")

	reactivated, err := f.accounts.Reactivate(ctx, acc.ID())
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, reactivated.Status())
}

func TestChangePasswordUnlocksAndRevokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.register(t)
	pair, err := f.login(testPassword)
	require.NoError(t, err)
	for i := 0; i < model.DefaultMaxFailedAttempts; i++ {
		_, _ = f.login("wrong-password")
	}

	updated, err := f.accounts.ChangePassword(ctx, acc.ID(), "N3w-P@ssword")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, updated.Status())

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	requireAuthError(t, err, KindUnauthorized, "invalid_credentials")

	_, err = f.login(testPassword)
	requireAuthError(t, err, KindUnauthorized, "invalid_credentials")
	_, err = f.auth.Login(ctx, LoginCommand{Email: testEmail, Password: "N3w-P@ssword"})
	require.NoError(t, err)
}

type countingPurger struct{ calls atomic.Int32 }

func (c *countingPurger) DeleteExpired(context.Context, time.Time) (int64, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestRunTokenPurge(t *testing.T) {
	p := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunTokenPurge(ctx, p, 5*time.Millisecond, time.Hour, zerolog.Nop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purge loop did not stop")
	}
}
