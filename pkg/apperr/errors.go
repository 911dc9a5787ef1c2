// Package apperr defines the error kinds shared across the service.
//
// Every failure surfaced by the core is one of these kinds; the transport
// layer maps kinds to HTTP statuses and never inspects error strings.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized indicates a missing or expired session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates a valid session without the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates an absent entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a slug collision on create.
	ErrConflict = errors.New("conflict")
	// ErrInconsistent indicates a reference to a deleted role, group or
	// schema. Callers degrade to empty permissions rather than failing.
	ErrInconsistent = errors.New("inconsistent reference")
	// ErrBadRequest indicates a malformed request rejected before the core
	// runs (e.g. no resolvable session on an authorizable route).
	ErrBadRequest = errors.New("bad request")
)

// ValidationError carries the field slugs that failed schema validation.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Fields, ", ")
}

// NewValidation builds a ValidationError for the given field slugs.
func NewValidation(message string, fields ...string) error {
	return &ValidationError{Message: message, Fields: fields}
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// StorageError wraps a store-level failure (connectivity, serialization).
// Storage errors are always surfaced, never retried inside the core.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError for operation op. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// NotFoundf builds an ErrNotFound with entity context.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds an ErrConflict with entity context.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Forbiddenf builds an ErrForbidden with decision context.
func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Unauthorizedf builds an ErrUnauthorized with context.
func Unauthorizedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}
