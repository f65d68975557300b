package model

import (
	"errors"
	"fmt"
)

// ErrPrecondition marks a caller bug: a nil collaborator, an empty identifier,
// a non-positive lock duration or an expiry that is not after creation.
// Errors wrapping it are never retried.
var ErrPrecondition = errors.New("precondition violated")

// ErrInvalidEmail is returned by ParseEmail for malformed addresses.
var ErrInvalidEmail = fmt.Errorf("%w: invalid email", ErrPrecondition)

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
