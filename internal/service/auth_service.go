// Package service holds the login, refresh and logout orchestrators and the
// account administration use cases. It owns no storage or transport: both
// are injected through the interfaces in ports.go.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-iam/internal/model"
	"github.com/iliyamo/booking-iam/internal/queue"
	"github.com/iliyamo/booking-iam/internal/repository"
)

// TokenTypeBearer is the token_type of every issued pair.
const TokenTypeBearer = "Bearer"

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// LoginCommand carries a login attempt. ClientIP and UserAgent only feed
// events and are optional.
type LoginCommand struct {
	Email     string
	Password  string
	ClientIP  string
	UserAgent string
}

// Options tunes token lifetimes and the lockout policy. Zero values fall
// back to the defaults.
type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Lockout    model.LockoutPolicy
}

func (o Options) withDefaults() Options {
	if o.AccessTTL <= 0 {
		o.AccessTTL = DefaultAccessTTL
	}
	if o.RefreshTTL <= 0 {
		o.RefreshTTL = DefaultRefreshTTL
	}
	if o.Lockout.MaxFailedAttempts <= 0 {
		o.Lockout.MaxFailedAttempts = model.DefaultMaxFailedAttempts
	}
	if o.Lockout.LockDuration <= 0 {
		o.Lockout.LockDuration = model.DefaultLockDuration
	}
	return o
}

// AuthService runs Login, Refresh and Logout. Accounts and tokens are
// re-read from the stores on every call; nothing is cached between requests.
type AuthService struct {
	users   CredentialStore
	tokens  TokenStore
	issuer  TokenIssuer
	matcher model.Matcher
	hasher  model.SecretHasher
	events  EventPublisher
	opts    Options
	log     zerolog.Logger
	now     func() time.Time
}

// NewAuthService wires the orchestrators. events may be nil.
func NewAuthService(
	users CredentialStore,
	tokens TokenStore,
	issuer TokenIssuer,
	matcher model.Matcher,
	hasher model.SecretHasher,
	events EventPublisher,
	opts Options,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		issuer:  issuer,
		matcher: matcher,
		hasher:  hasher,
		events:  events,
		opts:    opts.withDefaults(),
		log:     log.With().Str("component", "auth").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login verifies the password and issues a token pair. The account is saved
// whatever the outcome so failure counters and locks persist. Unknown emails
// fail exactly like a wrong password.
func (s *AuthService) Login(ctx context.Context, cmd LoginCommand) (TokenPair, error) {
	now := s.now()
	log := s.log.With().Str("email", model.MaskEmail(model.NormalizeEmail(cmd.Email))).Str("ip", queue.MaskIP(cmd.ClientIP)).Logger()

	acc, err := s.users.FindByEmail(ctx, cmd.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("find account: %w", err)
	}
	if acc == nil {
		log.Info().Str("reason", string(model.ReasonInvalidCredentials)).Msg("login failed: unknown email")
		s.publish(ctx, queue.LoginFailed(cmd.Email, model.ReasonInvalidCredentials, cmd.ClientIP, now))
		return TokenPair{}, loginFailure(model.ReasonInvalidCredentials, "unknown email")
	}

	res, err := acc.Authenticate(cmd.Password, s.matcher, s.opts.Lockout, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.Save(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrStaleAccount) {
			// a concurrent attempt won the row; answer like any failed login so
			// the conflict does not reveal that the account exists
			log.Warn().Str("user_id", acc.ID()).Msg("login rejected: account updated concurrently")
			return TokenPair{}, loginFailure(model.ReasonInvalidCredentials, "concurrent update: "+err.Error())
		}
		return TokenPair{}, fmt.Errorf("save account %s: %w", acc.ID(), err)
	}

	if !res.OK() {
		log.Info().
			Str("user_id", acc.ID()).
			Str("reason", string(res.Reason())).
			Int("failed_attempts", acc.FailedAttempts()).
			Msg("login failed")
		s.publish(ctx, queue.LoginFailed(cmd.Email, res.Reason(), cmd.ClientIP, now))
		if res.LockedNow() {
			until, ok := acc.LockedUntil()
			log.Warn().Str("user_id", acc.ID()).Time("locked_until", until).Msg("account locked after consecutive failures")
			s.publish(ctx, queue.AccountLocked(acc.ID(), queue.LockReasonConsecutiveFailures, until, ok, now))
		}
		return TokenPair{}, loginFailure(res.Reason(), "authentication rejected")
	}

	pair, err := s.issue(ctx, acc, now)
	if err != nil {
		return TokenPair{}, err
	}
	log.Info().Str("user_id", acc.ID()).Msg("login succeeded")
	s.publish(ctx, queue.UserLoggedIn(acc.ID(), cmd.ClientIP, cmd.UserAgent, now))
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is minted. Every rejection has the same public shape. When two calls
// race on one token the store lets only the first revoke through.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshSecret string) (TokenPair, error) {
	if rawRefreshSecret == "" {
		return TokenPair{}, refreshFailure("empty refresh token")
	}
	now := s.now()
	hash := s.hasher.Hash(rawRefreshSecret)
	log := s.log.With().Str("token_ref", hash.Masked()).Logger()

	tok, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("find refresh token: %w", err)
	}
	if tok == nil {
		log.Info().Msg("refresh rejected: unknown token")
		return TokenPair{}, refreshFailure("refresh token not found")
	}
	if !tok.IsValid(now) {
		log.Info().Str("user_id", tok.UserID()).Bool("revoked", tok.IsRevoked()).Msg("refresh rejected: token expired or revoked")
		return TokenPair{}, refreshFailure("refresh token is expired or revoked")
	}

	acc, err := s.users.FindByID(ctx, tok.UserID())
	if err != nil {
		return TokenPair{}, fmt.Errorf("find account: %w", err)
	}
	if acc == nil {
		log.Warn().Str("user_id", tok.UserID()).Msg("refresh rejected: owner account missing")
		return TokenPair{}, refreshFailure("account not found for refresh token")
	}

	tok.Revoke(now)
	if err := s.tokens.Save(ctx, tok); err != nil {
		if errors.Is(err, repository.ErrRevokeConflict) {
			log.Warn().Str("user_id", acc.ID()).Msg("refresh rejected: token rotated concurrently")
			return TokenPair{}, refreshFailure("refresh token already rotated")
		}
		return TokenPair{}, fmt.Errorf("revoke refresh token: %w", err)
	}

	pair, err := s.issue(ctx, acc, now)
	if err != nil {
		return TokenPair{}, err
	}
	log.Debug().Str("user_id", acc.ID()).Msg("refresh token rotated")
	return pair, nil
}

// Logout revokes the caller's refresh token. Unknown and already revoked
// tokens succeed without touching the store.
func (s *AuthService) Logout(ctx context.Context, rawRefreshSecret, callerID string) error {
	if rawRefreshSecret == "" {
		return nil
	}
	hash := s.hasher.Hash(rawRefreshSecret)
	tok, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("find refresh token: %w", err)
	}
	if tok == nil {
		return nil
	}
	if tok.UserID() != callerID {
		s.log.Warn().Str("user_id", callerID).Str("token_ref", hash.Masked()).Msg("logout rejected: token owned by another account")
		return ownershipFailure()
	}
	if !tok.Revoke(s.now()) {
		return nil
	}
	if err := s.tokens.Save(ctx, tok); err != nil && !errors.Is(err, repository.ErrRevokeConflict) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.log.Info().Str("user_id", callerID).Msg("logged out")
	return nil
}

// issue mints a pair for acc and stores the digest of the new refresh
// secret.
func (s *AuthService) issue(ctx context.Context, acc *model.Account, now time.Time) (TokenPair, error) {
	out, err := s.issuer.Issue(acc.ID(), []string{acc.Role()}, s.opts.AccessTTL, s.opts.RefreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	tok, err := model.NewRefreshToken(acc.ID(), s.hasher.Hash(out.RefreshSecret), now.Add(s.opts.RefreshTTL), now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Save(ctx, tok); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshSecret,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    out.ExpiresInSeconds,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, ev queue.Event) {
	publishBestEffort(ctx, s.events, ev, s.log)
}

func publishBestEffort(ctx context.Context, p EventPublisher, ev queue.Event, log zerolog.Logger) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Msg("event publish failed")
	}
}
