// internal/domain/taskerr/taskerr.go

// Package taskerr defines the typed errors the core returns across its API
// boundary. Every fallible operation resolves to a value or to one of these;
// nothing in the core panics past its boundary.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that branch on failure class
// (HTTP status mapping, retry decisions) without parsing messages.
type Kind int

const (
	// KindValidation: malformed or blank input, detected before any I/O.
	KindValidation Kind = iota
	// KindAuthorization: the actor lacks the role the mutation requires.
	KindAuthorization
	// KindNotFound: a referenced group, member, list, or task is absent.
	KindNotFound
	// KindConflict: a uniqueness rule would be violated (duplicate join code,
	// duplicate active membership).
	KindConflict
	// KindTransport: the underlying store call failed; the store's message is
	// carried through without further classification.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Error is the tagged error type for the core.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error. A nil cause returns nil; the error return
// type keeps that nil untyped so callers can test it directly.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Validation is shorthand for New(KindValidation, ...).
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Authorization is shorthand for New(KindAuthorization, ...).
func Authorization(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}

// NotFound is shorthand for New(KindNotFound, ...).
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Conflict is shorthand for New(KindConflict, ...).
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// Transport wraps a store failure, preserving its message.
func Transport(err error, format string, args ...any) error {
	return Wrap(KindTransport, err, format, args...)
}

// KindOf extracts the Kind from err. Untyped errors report KindTransport,
// since anything untagged reaching a caller came out of a store.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransport
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}
