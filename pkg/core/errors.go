// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is a machine-readable failure category.
type ErrorKind string

const (
	// KindValidation marks malformed input: wrong-length coordinate arrays,
	// unknown enum values, empty required strings.
	KindValidation ErrorKind = "validation"
	// KindNotFound marks a referenced id that does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindConflict marks a structural constraint violation, such as removing
	// a non-empty group without cascade.
	KindConflict ErrorKind = "conflict"
	// KindConfirmationRequired marks a destructive operation that was called
	// without its explicit confirmation flag.
	KindConfirmationRequired ErrorKind = "confirmation_required"
)

// Error is a structured store failure carrying the operation name and the
// offending field or id, so callers can render an actionable message.
type Error struct {
	Kind    ErrorKind
	Op      string // operation that failed, e.g. "create_waypoint"
	Field   string // offending input field, when known
	ID      string // offending entity id, when known
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (id %s)", e.ID)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewValidation reports malformed input on the given field.
func NewValidation(op, field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      op,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewNotFound reports that the referenced entity does not exist.
func NewNotFound(op, entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Op:      op,
		ID:      id,
		Message: entity + " not found",
	}
}

// NewConflict reports a structural constraint violation.
func NewConflict(op, id, format string, args ...any) *Error {
	return &Error{
		Kind:    KindConflict,
		Op:      op,
		ID:      id,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConfirmationRequired reports a destructive operation missing its confirm flag.
func NewConfirmationRequired(op string) *Error {
	return &Error{
		Kind:    KindConfirmationRequired,
		Op:      op,
		Field:   "confirm",
		Message: "destructive operation requires explicit confirmation",
	}
}

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }

// IsNotFound reports whether err is a missing-entity failure.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsConflict reports whether err is a structural conflict.
func IsConflict(err error) bool { return kindOf(err) == KindConflict }

// IsConfirmationRequired reports whether err is a missing-confirmation failure.
func IsConfirmationRequired(err error) bool { return kindOf(err) == KindConfirmationRequired }
