// Package apperr defines the error taxonomy shared by all layers. Every
// error surfaced by the engine carries a stable machine-readable Kind plus
// a human-readable message. Callers should use errors.As / KindOf to match.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable machine-readable error classification.
type Kind string

const (
	// KindValidation covers malformed input and ill-formed ids.
	KindValidation Kind = "validation"
	// KindNotFound means the referenced record does not exist.
	KindNotFound Kind = "not_found"
	// KindConflict covers duplicate invoice numbers and lost
	// concurrent-mutation races.
	KindConflict Kind = "conflict"
	// KindInvalidTransition means a workflow precondition was violated.
	KindInvalidTransition Kind = "invalid_transition"
	// KindStorage is an underlying persistence failure, surfaced as-is.
	KindStorage Kind = "storage"
)

// Error is the typed error carried across layer boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a kind and message.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain. Unclassified errors
// report KindStorage so that nothing escapes the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
