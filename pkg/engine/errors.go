package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Class classifies an engine error for exit-code and retry decisions.
type Class string

const (
	// ClassValidation covers desired-state schema or referenced-content
	// problems, detected before any network activity.
	ClassValidation Class = "validation"

	// ClassProvider covers remote calls that failed after exhausting
	// retries.
	ClassProvider Class = "provider"

	// ClassIdentity covers rename failures: missing source key or target
	// key collision.
	ClassIdentity Class = "identity"
)

// Error is a classified engine error with optional resource context.
type Error struct {
	Class   Class
	Message string

	// Kind and Key identify the resource involved, when applicable.
	Kind Kind
	Key  string

	// Retryable is meaningful for ClassProvider: it records whether the
	// underlying failure category (rate limiting, server errors) was
	// retryable before retries were exhausted.
	Retryable bool

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)
	if e.Key != "" {
		fmt.Fprintf(&b, " (%s %q)", e.Kind, e.Key)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// WithResource attaches resource context.
func (e *Error) WithResource(kind Kind, key string) *Error {
	e.Kind = kind
	e.Key = key
	return e
}

// NewValidationError creates a validation error.
func NewValidationError(message string, err error) *Error {
	return &Error{Class: ClassValidation, Message: message, Err: err}
}

// NewProviderError creates a provider error.
func NewProviderError(message string, retryable bool, err error) *Error {
	return &Error{Class: ClassProvider, Message: message, Retryable: retryable, Err: err}
}

// NewIdentityError creates an identity (rename) error.
func NewIdentityError(message string) *Error {
	return &Error{Class: ClassIdentity, Message: message}
}

// IsValidation reports whether err is classified as a validation error.
func IsValidation(err error) bool { return hasClass(err, ClassValidation) }

// IsProvider reports whether err is classified as a provider error.
func IsProvider(err error) bool { return hasClass(err, ClassProvider) }

// IsIdentity reports whether err is classified as an identity error.
func IsIdentity(err error) bool { return hasClass(err, ClassIdentity) }

func hasClass(err error, class Class) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// ConflictError aggregates every icon conflict registered during one
// drift-pull. A pull with conflicts fails atomically: no desired-state,
// checkpoint, or filesystem mutation is committed, and all conflicts are
// reported together rather than just the first.
type ConflictError struct {
	Conflicts []Conflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d icon conflict(s) detected; use --accept-remote to keep remote icons or --accept-local to re-upload local icons on next sync", len(e.Conflicts))
}

// AsConflict extracts a ConflictError from err, if present.
func AsConflict(err error) (*ConflictError, bool) {
	var e *ConflictError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
