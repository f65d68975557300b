package model

// FailureReason is the public code attached to a failed authentication.
type FailureReason string

const (
	ReasonInvalidCredentials FailureReason = "invalid_credentials"
	ReasonAccountLocked      FailureReason = "account_locked"
	ReasonAccountNotActive   FailureReason = "account_not_active"
	// ReasonRateLimited is only produced by the request limiter in front of
	// the login endpoint, never by Account.Authenticate.
	ReasonRateLimited FailureReason = "rate_limited"
)

// Description returns the client-facing message for the reason.
func (r FailureReason) Description() string {
	switch r {
	case ReasonInvalidCredentials:
		return "Invalid email or password"
	case ReasonAccountLocked:
		return "Account is locked"
	case ReasonAccountNotActive:
		return "Account is not active"
	case ReasonRateLimited:
		return "Too many login attempts"
	}
	return "Authentication failed"
}

// AuthResult is the outcome of Account.Authenticate. The zero value is a
// success.
type AuthResult struct {
	reason    FailureReason
	lockedNow bool
}

// AuthSucceeded returns a successful result.
func AuthSucceeded() AuthResult { return AuthResult{} }

// AuthFailed returns a failed result carrying reason.
func AuthFailed(reason FailureReason) AuthResult { return AuthResult{reason: reason} }

// OK reports whether the attempt succeeded.
func (r AuthResult) OK() bool { return r.reason == "" }

// Reason is empty on success.
func (r AuthResult) Reason() FailureReason { return r.reason }

// LockedNow reports whether this attempt pushed the account over the
// failure threshold and locked it.
func (r AuthResult) LockedNow() bool { return r.lockedNow }
