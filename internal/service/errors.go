package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/booking-iam/internal/model"
)

// ErrorKind is the access-control class of an AuthError.
type ErrorKind int

const (
	// KindUnauthorized means the caller could not be authenticated. Every
	// unauthorized failure of one operation renders the same way.
	KindUnauthorized ErrorKind = iota + 1
	// KindForbidden means the caller is known but not allowed.
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	}
	return "unknown"
}

// CodeForbidden is the public code for ownership failures.
const CodeForbidden = "forbidden"

// AuthError is an access-control failure returned by the orchestrators.
// Code and Message are safe to show to clients. Detail tells operators what
// actually happened and must only go to logs.
type AuthError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Detail  string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

// ErrAccountNotFound is returned by account administration for unknown ids.
// Login and refresh never return it.
var ErrAccountNotFound = errors.New("account not found")

// ErrInvalidPassword rejects passwords outside the accepted length range.
var ErrInvalidPassword = fmt.Errorf("%w: password must be %d to %d characters", model.ErrPrecondition, MinPasswordLength, MaxPasswordLength)

// Password length bounds. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// AsAuthError unwraps err into an *AuthError.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// loginFailure maps a failed authentication to its access-control class.
func loginFailure(reason model.FailureReason, detail string) *AuthError {
	kind := KindUnauthorized
	if reason == model.ReasonAccountLocked || reason == model.ReasonAccountNotActive {
		kind = KindForbidden
	}
	return &AuthError{Kind: kind, Code: string(reason), Message: reason.Description(), Detail: detail}
}

// refreshFailure is the single public shape of every refresh rejection:
// unknown, expired, revoked and orphaned tokens are indistinguishable.
func refreshFailure(detail string) *AuthError {
	return &AuthError{
		Kind:    KindUnauthorized,
		Code:    string(model.ReasonInvalidCredentials),
		Message: "Invalid refresh token",
		Detail:  detail,
	}
}

func ownershipFailure() *AuthError {
	return &AuthError{
		Kind:    KindForbidden,
		Code:    CodeForbidden,
		Message: "Refresh token does not belong to the caller",
		Detail:  "caller does not own token",
	}
}
