// Package apperror defines the error taxonomy shared by the billing core.
//
// Every business failure is an *Error carrying a Kind and a snake_case Code.
// Packages declare their sentinels with New and callers match them with
// errors.Is; transports classify arbitrary errors with KindOf.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transports.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation_error"
	KindInvalidState        Kind = "invalid_state"
	KindConfiguration       Kind = "configuration_error"
	KindUnknownCaller       Kind = "unknown_caller"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindForbidden           Kind = "forbidden"
	KindRateLimited         Kind = "rate_limited"
	KindStorage             Kind = "storage_error"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New returns a sentinel error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind and code so wrapped copies of a sentinel still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap attaches a cause to a copy of the sentinel.
func (e *Error) Wrap(cause error) *Error {
	copy := *e
	copy.Err = cause
	return &copy
}

// Storage wraps a persistence failure. Nil in, nil out.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindStorage, Code: "storage_failure", Message: "storage failure", Err: err}
}

// KindOf reports the kind of err. Unclassified errors are treated as storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

// CodeOf returns the snake_case code of a classified error, or "internal_error".
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal_error"
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
