// Package repository implements the credential and refresh-token stores.
// Sentinel errors below let the service layer tell store conflicts apart
// from infrastructure failures.
package repository

import "errors"

// ErrEmailExists is returned by Create when users.email is already taken.
// Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrStaleAccount is returned by Save when the account row changed since it
// was read (optimistic version mismatch). The caller lost a race and must
// not retry with the stale copy.
var ErrStaleAccount = errors.New("account was modified concurrently")

// ErrRevokeConflict is returned by Save when a refresh token is persisted as
// revoked but another writer revoked it first. Exactly one caller wins the
// revoke of a given token.
var ErrRevokeConflict = errors.New("refresh token already revoked")
