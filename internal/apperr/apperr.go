// Package apperr implements the error taxonomy shared by every layer of the
// backend. Domain logic never formats HTTP; it returns an *Error with a Kind,
// and the API layer is the only place that maps a Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of HTTP status mapping and
// caller handling. The zero value is not a valid Kind.
type Kind int

const (
	_ Kind = iota
	Invalid
	NotAuthorized
	Forbidden
	NotFound
	Conflict
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotAuthorized:
		return "not_authorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the single error type propagated out of the domain layer.
type Error struct {
	Kind    Kind
	Message string
	Field   string // populated for Invalid errors that name an offending field
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, apperr.NotFound) style checks against a bare Kind
// by comparing Kind fields of two *Error values wrapped as sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Invalidf builds an Invalid error, optionally naming the offending field.
func Invalidf(field, format string, args ...any) *Error {
	e := newf(Invalid, format, args...)
	e.Field = field
	return e
}

func NotAuthorizedf(format string, args ...any) *Error { return newf(NotAuthorized, format, args...) }
func Forbiddenf(format string, args ...any) *Error     { return newf(Forbidden, format, args...) }
func NotFoundf(format string, args ...any) *Error      { return newf(NotFound, format, args...) }
func Conflictf(format string, args ...any) *Error      { return newf(Conflict, format, args...) }

// Fatalf wraps an unexpected/internal error. The message is sanitised at the
// API boundary; cause is preserved for logging.
func Fatalf(cause error, format string, args ...any) *Error {
	e := newf(Fatal, format, args...)
	e.Cause = cause
	return e
}

// KindOf extracts the Kind of err, defaulting to Fatal for unrecognised
// errors (e.g. a raw DB driver error that escaped a repository).
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}

func Is(err error, k Kind) bool { return KindOf(err) == k }
