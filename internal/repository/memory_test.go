package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	acc := newAccount(t, "user@example.com")

	require.NoError(t, repo.Create(ctx, acc))
	assert.ErrorIs(t, repo.Create(ctx, newAccount(t, "USER@example.com")), ErrEmailExists)

	found, err := repo.FindByEmail(ctx, "User@Example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, acc.ID(), found.ID())

	missing, err := repo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// two copies read at the same version: only the first save wins
	a, err := repo.FindByID(ctx, acc.ID())
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, acc.ID())
	require.NoError(t, err)
	a.Suspend(time.Now())
	require.NoError(t, repo.Save(ctx, a))
	assert.EqualValues(t, 1, a.Version())
	assert.ErrorIs(t, repo.Save(ctx, b), ErrStaleAccount)

	// mutating the caller's copy does not leak into the store
	a.Suspend(time.Now())
	reread, err := repo.FindByID(ctx, acc.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 1, reread.Version())
}

func TestMemoryTokenRepo_SingleRevokeWins(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepo()
	now := time.Now()
	tok := newToken(t, now)
	require.NoError(t, repo.Save(ctx, tok))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := repo.FindByHash(ctx, tok.TokenHash())
			if err != nil || c == nil {
				return
			}
			c.Revoke(now)
			if repo.Save(ctx, c) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())

	stored, err := repo.FindByHash(ctx, tok.TokenHash())
	require.NoError(t, err)
	assert.True(t, stored.IsRevoked())
}

func TestMemoryTokenRepo_RevokeAllAndPurge(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepo()
	now := time.Now()
	tok := newToken(t, now)
	require.NoError(t, repo.Save(ctx, tok))

	n, err := repo.RevokeAllForUser(ctx, "acc-1", now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = repo.RevokeAllForUser(ctx, "acc-1", now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.DeleteExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, repo.Len())
}
