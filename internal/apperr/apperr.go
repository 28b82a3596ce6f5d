// Package apperr defines the error kinds shared across the service layer.
// Handlers map these to HTTP status codes; everything else wraps with %w.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks lookups for sessions, messages or files that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks writes or transitions disallowed by the session state.
	ErrInvalidState = errors.New("invalid state")
	// ErrForbidden marks staff operations on sessions not assigned to them.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyExists marks duplicate session creation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUpstreamUnavailable marks failures of external collaborators (responder, storage).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// InvalidStatef wraps ErrInvalidState with context.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidState)...)
}

// Forbiddenf wraps ErrForbidden with context.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrForbidden)...)
}

// AlreadyExistsf wraps ErrAlreadyExists with context.
func AlreadyExistsf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrAlreadyExists)...)
}

// Upstreamf wraps ErrUpstreamUnavailable with context.
func Upstreamf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUpstreamUnavailable)...)
}
