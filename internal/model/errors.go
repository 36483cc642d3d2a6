package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested session, turn or customer is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional write lost against a concurrent writer.
	ErrConflict = errors.New("conflict")
	// ErrLockHeld means another turn for the same session holds the lock.
	ErrLockHeld = errors.New("session lock held")
	// ErrUnauthenticated means a pre-authenticated channel presented no
	// valid proof of the subscriber's identity.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError describes a malformed canonical request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ExternalError wraps a failure of an external collaborator.
type ExternalError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }
