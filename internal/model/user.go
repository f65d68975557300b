package model

import (
	"time"

	"github.com/google/uuid"
)

// Defaults for brute-force protection.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockDuration      = 30 * time.Minute
)

// Roles. Self-registered accounts get RoleUser; RoleAdmin guards account
// administration.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// LockoutPolicy decides when consecutive failures lock an account and for
// how long.
type LockoutPolicy struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

// DefaultLockoutPolicy locks after 5 failures for 30 minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxFailedAttempts: DefaultMaxFailedAttempts, LockDuration: DefaultLockDuration}
}

func (p LockoutPolicy) validate() error {
	if p.MaxFailedAttempts < 1 {
		return preconditionf("lockout threshold must be at least 1")
	}
	if p.LockDuration <= 0 {
		return preconditionf("lock duration must be positive")
	}
	return nil
}

// Account is the user aggregate as stored in the `users` table. All state
// changes go through its methods; stores read and write it through
// AccountSnapshot.
//
// Fields:
//
//	id             – users.id, a UUID string.
//	email          – users.email, normalized and unique.
//	credential     – users.password_hash (bcrypt).
//	role           – users.role, copied into the access token roles claim.
//	status         – users.status.
//	failedAttempts – consecutive failed logins since the last success.
//	lastFailedAt   – nil means no failure since the last success.
//	lockedUntil    – only meaningful while Locked; nil means locked until an explicit unlock.
//	version        – optimistic concurrency counter, bumped by the store on every save.
type Account struct {
	id             string
	email          Email
	credential     PasswordHash
	role           string
	status         AccountStatus
	failedAttempts int
	lastFailedAt   *time.Time
	lockedUntil    *time.Time
	createdAt      time.Time
	updatedAt      time.Time
	version        int64
}

// AccountSnapshot is the flat persisted form of an Account.
type AccountSnapshot struct {
	ID             string
	Email          string
	PasswordHash   string
	Role           string
	Status         AccountStatus
	FailedAttempts int
	LastFailedAt   *time.Time
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
}

// NewAccount creates an Active account with a fresh id.
func NewAccount(email Email, credential PasswordHash, role string, now time.Time) (*Account, error) {
	if email.IsZero() {
		return nil, preconditionf("account email is required")
	}
	if credential.IsZero() {
		return nil, preconditionf("account credential is required")
	}
	if role == "" {
		role = RoleUser
	}
	return &Account{
		id:         uuid.NewString(),
		email:      email,
		credential: credential,
		role:       role,
		status:     StatusActive,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// RestoreAccount rebuilds an Account from storage. It enforces structural
// invariants only.
func RestoreAccount(s AccountSnapshot) (*Account, error) {
	if s.ID == "" {
		return nil, preconditionf("account id is required")
	}
	email, err := ParseEmail(s.Email)
	if err != nil {
		return nil, err
	}
	credential, err := PasswordHashFromTrusted(s.PasswordHash)
	if err != nil {
		return nil, err
	}
	status, err := ParseAccountStatus(string(s.Status))
	if err != nil {
		return nil, err
	}
	if s.FailedAttempts < 0 {
		return nil, preconditionf("failed attempts must be non-negative")
	}
	role := s.Role
	if role == "" {
		role = RoleUser
	}
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = s.CreatedAt
	}
	return &Account{
		id:             s.ID,
		email:          email,
		credential:     credential,
		role:           role,
		status:         status,
		failedAttempts: s.FailedAttempts,
		lastFailedAt:   copyTime(s.LastFailedAt),
		lockedUntil:    copyTime(s.LockedUntil),
		createdAt:      s.CreatedAt,
		updatedAt:      updated,
		version:        s.Version,
	}, nil
}

// Snapshot returns the persisted form of a.
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		ID:             a.id,
		Email:          a.email.Value(),
		PasswordHash:   a.credential.Value(),
		Role:           a.role,
		Status:         a.status,
		FailedAttempts: a.failedAttempts,
		LastFailedAt:   copyTime(a.lastFailedAt),
		LockedUntil:    copyTime(a.lockedUntil),
		CreatedAt:      a.createdAt,
		UpdatedAt:      a.updatedAt,
		Version:        a.version,
	}
}

// Authenticate checks rawSecret against the stored credential and records
// the outcome on the account. The lock check runs before the status check,
// so an account that is Locked and otherwise not active reports
// ReasonAccountLocked. Only a nil matcher or an invalid policy returns an
// error; every authentication outcome is an AuthResult.
func (a *Account) Authenticate(rawSecret string, m Matcher, policy LockoutPolicy, now time.Time) (AuthResult, error) {
	if m == nil {
		return AuthResult{}, preconditionf("matcher is required")
	}
	if err := policy.validate(); err != nil {
		return AuthResult{}, err
	}

	if a.IsCurrentlyLocked(now) {
		return AuthFailed(ReasonAccountLocked), nil
	}
	if !a.status.CanAuthenticate() {
		return AuthFailed(ReasonAccountNotActive), nil
	}

	if a.credential.Matches(rawSecret, m) {
		a.failedAttempts = 0
		a.lastFailedAt = nil
		a.updatedAt = now
		return AuthSucceeded(), nil
	}

	a.failedAttempts++
	a.lastFailedAt = timePtr(now)
	a.updatedAt = now

	result := AuthFailed(ReasonInvalidCredentials)
	if a.failedAttempts >= policy.MaxFailedAttempts {
		a.lockFor(policy.LockDuration, now)
		result.lockedNow = true
	}
	return result, nil
}

// IsCurrentlyLocked reports whether the lock still blocks authentication.
// An expired timed lock does not block, although status stays Locked until
// Unlock is called.
func (a *Account) IsCurrentlyLocked(now time.Time) bool {
	if a.status != StatusLocked {
		return false
	}
	if a.lockedUntil == nil {
		return true
	}
	return now.Before(*a.lockedUntil)
}

// Lock locks the account for d, which must be positive.
func (a *Account) Lock(d time.Duration, now time.Time) error {
	if d <= 0 {
		return preconditionf("lock duration must be positive")
	}
	a.lockFor(d, now)
	return nil
}

func (a *Account) lockFor(d time.Duration, now time.Time) {
	a.status = StatusLocked
	a.lockedUntil = timePtr(now.Add(d))
	a.updatedAt = now
}

// LockIndefinitely locks the account until an explicit Unlock.
func (a *Account) LockIndefinitely(now time.Time) {
	a.status = StatusLocked
	a.lockedUntil = nil
	a.updatedAt = now
}

// Unlock returns a Locked account to Active and clears the failure counters.
// It reports whether anything changed.
func (a *Account) Unlock(now time.Time) bool {
	if a.status != StatusLocked {
		return false
	}
	a.status = StatusActive
	a.lockedUntil = nil
	a.failedAttempts = 0
	a.lastFailedAt = nil
	a.updatedAt = now
	return true
}

// Suspend moves the account to Suspended. Only Reactivate leaves it.
func (a *Account) Suspend(now time.Time) {
	a.status = StatusSuspended
	a.updatedAt = now
}

// Reactivate returns a Suspended account to Active.
func (a *Account) Reactivate(now time.Time) error {
	if a.status != StatusSuspended {
		return preconditionf("only suspended accounts can be reactivated, status is %s", a.status)
	}
	a.status = StatusActive
	a.failedAttempts = 0
	a.lastFailedAt = nil
	a.lockedUntil = nil
	a.updatedAt = now
	return nil
}

// ChangeCredential replaces the password hash, resets the failure counters
// and lifts any lock.
func (a *Account) ChangeCredential(h PasswordHash, now time.Time) error {
	if h.IsZero() {
		return preconditionf("new credential is required")
	}
	a.credential = h
	a.failedAttempts = 0
	a.lastFailedAt = nil
	if a.status == StatusLocked {
		a.status = StatusActive
		a.lockedUntil = nil
	}
	a.updatedAt = now
	return nil
}

// ChangeEmail replaces the login address. Uniqueness is the store's job.
func (a *Account) ChangeEmail(e Email, now time.Time) error {
	if e.IsZero() {
		return preconditionf("new email is required")
	}
	a.email = e
	a.updatedAt = now
	return nil
}

func (a *Account) ID() string { return a.id }
func (a *Account) Email() Email { return a.email }
func (a *Account) Credential() PasswordHash { return a.credential }
func (a *Account) Role() string { return a.role }
func (a *Account) Status() AccountStatus { return a.status }
func (a *Account) FailedAttempts() int { return a.failedAttempts }
func (a *Account) CreatedAt() time.Time { return a.createdAt }
func (a *Account) UpdatedAt() time.Time { return a.updatedAt }
func (a *Account) Version() int64 { return a.version }
func (a *Account) SetVersion(v int64) { a.version = v }
func (a *Account) IsIndefinitelyLocked() bool { return a.status == StatusLocked && a.lockedUntil == nil }

// LastFailedAt returns false when there has been no failure since the last
// successful login.
func (a *Account) LastFailedAt() (time.Time, bool) { return derefTime(a.lastFailedAt) }

// LockedUntil returns false for an indefinite lock or an unlocked account.
func (a *Account) LockedUntil() (time.Time, bool) { return derefTime(a.lockedUntil) }

func timePtr(t time.Time) *time.Time { return &t }

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func derefTime(t *time.Time) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}
