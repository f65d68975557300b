package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/booking-iam/internal/model"
)

// MemoryUserRepo is a thread-safe in-memory credential store for tests and
// local dev (STORE_DRIVER=memory). It stores snapshots, so callers never
// share an *model.Account with the store.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]model.AccountSnapshot
	byEmail map[string]string // email -> id
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]model.AccountSnapshot),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryUserRepo) Create(_ context.Context, acc *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := acc.Snapshot()
	if _, exists := m.byEmail[s.Email]; exists {
		return ErrEmailExists
	}
	m.byID[s.ID] = s
	m.byEmail[s.Email] = s.ID
	return nil
}

func (m *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[model.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return model.RestoreAccount(m.byID[id])
}

func (m *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return model.RestoreAccount(s)
}

// Save applies the same version check as UserRepo.Save.
func (m *MemoryUserRepo) Save(_ context.Context, acc *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := acc.Snapshot()
	cur, ok := m.byID[s.ID]
	if !ok || cur.Version != s.Version {
		return ErrStaleAccount
	}
	if s.Email != cur.Email {
		if _, taken := m.byEmail[s.Email]; taken {
			return ErrEmailExists
		}
		delete(m.byEmail, cur.Email)
		m.byEmail[s.Email] = s.ID
	}
	s.Version++
	m.byID[s.ID] = s
	acc.SetVersion(s.Version)
	return nil
}

// MemoryTokenRepo is the in-memory refresh-token store.
type MemoryTokenRepo struct {
	mu     sync.RWMutex
	byHash map[string]model.RefreshTokenSnapshot
}

func NewMemoryTokenRepo() *MemoryTokenRepo {
	return &MemoryTokenRepo{byHash: make(map[string]model.RefreshTokenSnapshot)}
}

func (m *MemoryTokenRepo) FindByHash(_ context.Context, hash model.TokenHash) (*model.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byHash[hash.Value()]
	if !ok {
		return nil, nil
	}
	return model.RestoreRefreshToken(s)
}

// Save mirrors TokenRepo.Save: active tokens are inserted, revoked tokens
// are only written over a stored row that is still unrevoked.
func (m *MemoryTokenRepo) Save(_ context.Context, tok *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := tok.Snapshot()
	if s.RevokedAt == nil {
		m.byHash[s.TokenHash] = s
		return nil
	}
	cur, ok := m.byHash[s.TokenHash]
	if !ok || cur.RevokedAt != nil {
		return ErrRevokeConflict
	}
	cur.RevokedAt = s.RevokedAt
	m.byHash[s.TokenHash] = cur
	return nil
}

func (m *MemoryTokenRepo) RevokeAllForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for h, s := range m.byHash {
		if s.UserID != userID || s.RevokedAt != nil {
			continue
		}
		revoked := now
		s.RevokedAt = &revoked
		m.byHash[h] = s
		n++
	}
	return n, nil
}

func (m *MemoryTokenRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for h, s := range m.byHash {
		if s.ExpiresAt.Before(cutoff) {
			delete(m.byHash, h)
			n++
		}
	}
	return n, nil
}

// Len is the number of stored tokens, revoked ones included.
func (m *MemoryTokenRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byHash)
}
