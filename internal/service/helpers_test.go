package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/booking-iam/internal/model"
	"github.com/iliyamo/booking-iam/internal/queue"
	"github.com/iliyamo/booking-iam/internal/repository"
	"github.com/iliyamo/booking-iam/internal/utils"
)

const (
	testEmail    = "user@example.com"
	testPassword = "P@ssw0rd!"
)

// stubIssuer hands out predictable access tokens and unique refresh secrets.
type stubIssuer struct{ n atomic.Int64 }

func (s *stubIssuer) Issue(accountID string, _ []string, accessTTL, _ time.Duration) (utils.IssuedTokens, error) {
	n := s.n.Add(1)
	return utils.IssuedTokens{
		AccessToken:      fmt.Sprintf("access-%s-%d", accountID, n),
		RefreshSecret:    fmt.Sprintf("refresh-secret-%d", n),
		ExpiresInSeconds: int64(accessTTL / time.Second),
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// countingTokens counts writes to the wrapped token store.
type countingTokens struct {
	*repository.MemoryTokenRepo
	saves atomic.Int32
}

func (c *countingTokens) Save(ctx context.Context, tok *model.RefreshToken) error {
	c.saves.Add(1)
	return c.MemoryTokenRepo.Save(ctx, tok)
}

type fixture struct {
	users    *repository.MemoryUserRepo
	tokens   *countingTokens
	events   *recordingPublisher
	auth     *AuthService
	accounts *AccountService
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  repository.NewMemoryUserRepo(),
		tokens: &countingTokens{MemoryTokenRepo: repository.NewMemoryTokenRepo()},
		events: &recordingPublisher{},
		now:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.auth = NewAuthService(f.users, f.tokens, &stubIssuer{}, utils.BcryptMatcher{}, utils.SHA256Hasher{},
		f.events, Options{}, zerolog.Nop()).WithClock(clock)
	f.accounts = NewAccountService(f.users, f.tokens, utils.BcryptEncoder{Cost: bcrypt.MinCost},
		f.events, zerolog.Nop()).WithClock(clock)
	return f
}

func (f *fixture) register(t *testing.T) *model.Account {
	t.Helper()
	acc, err := f.accounts.Register(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return acc
}

func (f *fixture) login(password string) (TokenPair, error) {
	return f.auth.Login(context.Background(), LoginCommand{Email: testEmail, Password: password, ClientIP: "192.168.1.10"})
}
