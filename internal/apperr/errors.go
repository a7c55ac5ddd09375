// Package apperr holds the business error kinds shared by the services and
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrForbidden  = errors.New("forbidden")  // 403
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 409
	ErrState      = errors.New("state")      // 409
)

// Error carries a reason meant for the API caller. errors.Is matches it
// against its kind.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }

func Forbidden(format string, args ...any) error { return newf(ErrForbidden, format, args...) }

func NotFound(format string, args ...any) error { return newf(ErrNotFound, format, args...) }

func Conflict(format string, args ...any) error { return newf(ErrConflict, format, args...) }

func State(format string, args ...any) error { return newf(ErrState, format, args...) }

// Kind returns the sentinel err wraps, or nil for infrastructure errors.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrForbidden, ErrNotFound, ErrConflict, ErrState} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Reason returns the caller-facing message of a business error.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
