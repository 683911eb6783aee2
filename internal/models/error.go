package models

import (
	"errors"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login failure classes surfaced by the orchestrator
	ErrIPBlocked          = errors.New("ip temporarily blocked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrAuthBackend        = errors.New("authentication backend error")
)

// LoginError is the typed terminal result of a failed login. It wraps one
// of the login sentinel errors and carries the lockout context the API
// reports back to the client.
type LoginError struct {
	Err               error
	Message           string
	RemainingAttempts int
	Blocked           bool
	UnblockTime       *time.Time
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
