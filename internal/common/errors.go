package common

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers. Discrimination happens on the kind,
// never on message text.
type Kind int

const (
	// KindInternal is an unexpected failure; surfaced generically.
	KindInternal Kind = iota
	// KindInvalidInput is a caller mistake (bad page, missing bbox, bad strategy).
	KindInvalidInput
	// KindNotFound means the referenced file/dataset/job/identification does not exist.
	KindNotFound
	// KindExpired means an identification record is past its TTL; the caller
	// must restart the identify flow. Distinct from not-found.
	KindExpired
	// KindUnsupported is a fixed, permanent gap such as the OCR strategy.
	KindUnsupported
	// KindRemote is a known failure of the vision provider (timeout, API
	// error, malformed payload).
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindUnsupported:
		return "unsupported"
	case KindRemote:
		return "remote"
	default:
		return "internal"
	}
}

// Error is the application error type carrying a Kind.
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

// NewError creates an error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a formatted error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause with a kind and message.
func WrapError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, defaulting to KindInternal for errors that
// did not originate in this application.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
