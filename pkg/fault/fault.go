// Package fault defines the typed errors returned by engine operations.
//
// Every lifecycle violation is recovered at the call boundary and surfaced
// as one of five kinds; the HTTP layer maps kinds to problem-detail
// responses. Engine packages never panic on a lifecycle violation.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind string

const (
	// InvalidState — the operation is not valid for the entity's current
	// lifecycle state (approve on a draft, close on a closed action).
	InvalidState Kind = "invalid_state"

	// PreconditionFailed — a guard or invariant is not satisfied (submit
	// blocked by the submission guard, close without a work order).
	PreconditionFailed Kind = "precondition_failed"

	// InvalidArgument — malformed input (reject with a non-failing item).
	InvalidArgument Kind = "invalid_argument"

	// Forbidden — the acting principal lacks the required capability.
	Forbidden Kind = "forbidden"

	// NotFound — a referenced entity does not exist.
	NotFound Kind = "not_found"
)

// Error is a typed engine error. Details optionally carries structured data
// for the caller (e.g. a guard evaluation) so UIs can point at the exact
// blocking rows.
type Error struct {
	Kind    Kind
	Msg     string
	Details any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New creates a typed error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// KindOf returns the kind of err, or "" if err is not a fault error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a fault error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// DetailsOf returns the structured details of err, or nil.
func DetailsOf(err error) any {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Details
	}
	return nil
}
