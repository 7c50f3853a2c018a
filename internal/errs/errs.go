// Package errs defines the error kinds shared by the store, the services and the
// HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindDuplicate
	KindValidation
	KindInvalidCredentials
	KindAccountDisabled
	KindUnauthenticated
	KindForbidden
	KindExternal
	KindTimeout
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate_entry"
	case KindValidation:
		return "validation_error"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountDisabled:
		return "account_disabled"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindExternal:
		return "external_service_error"
	case KindTimeout:
		return "external_service_timeout"
	case KindStorage:
		return "storage_error"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is comparisons against a kind.
var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDuplicate          = &Error{Kind: KindDuplicate, Message: "duplicate entry"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation error"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrAccountDisabled    = &Error{Kind: KindAccountDisabled, Message: "account disabled"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrExternal           = &Error{Kind: KindExternal, Message: "external service error"}
	ErrTimeout            = &Error{Kind: KindTimeout, Message: "external service timeout"}
	ErrStorage            = &Error{Kind: KindStorage, Message: "storage error"}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, errs.ErrNotFound)
// works for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error   { return New(KindNotFound, format, args...) }
func Duplicate(format string, args ...any) *Error  { return New(KindDuplicate, format, args...) }
func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }
func Forbidden(format string, args ...any) *Error  { return New(KindForbidden, format, args...) }

func Storage(err error, format string, args ...any) *Error {
	return Wrap(KindStorage, err, format, args...)
}

func External(err error, format string, args ...any) *Error {
	return Wrap(KindExternal, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
