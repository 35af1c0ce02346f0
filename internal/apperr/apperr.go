// Package apperr classifies business-rule failures so the HTTP layer can map
// them to response codes without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind partitions failures by how the caller should react.
type Kind int

const (
	// KindUnknown covers unexpected failures surfaced as opaque server errors.
	KindUnknown Kind = iota
	// KindNotFound indicates a referenced record does not exist.
	KindNotFound
	// KindForbidden indicates the caller is authenticated but not allowed.
	KindForbidden
	// KindValidation indicates malformed or missing input.
	KindValidation
	// KindConflict indicates a uniqueness or concurrent-write collision.
	KindConflict
	// KindUnavailable indicates the underlying store could not be reached.
	KindUnavailable
)

// Error carries a client-facing message alongside the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a missing record.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden reports a denied action.
func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Validation reports malformed input.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Conflict reports a uniqueness collision.
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Unavailable wraps a store failure with a client-facing message.
func Unavailable(message string, cause error) error {
	return &Error{Kind: KindUnavailable, Message: message, Err: cause}
}

// KindOf extracts the classification from an error chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// MessageOf extracts the client-facing message from an error chain.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
