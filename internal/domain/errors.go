package domain

import "errors"

// Sentinel errors for the application.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabaseConnection wraps a failed store health check.
	ErrDatabaseConnection = errors.New("database connection error")

	// ErrUnboundConnection is returned when a mutating event arrives on a
	// connection that never announced (or authenticated) a user.
	ErrUnboundConnection = errors.New("connection has no bound user")

	// ErrIdentityMismatch is returned when a connection tries to act as a
	// user other than the one bound to it.
	ErrIdentityMismatch = errors.New("identity does not match connection")
)
