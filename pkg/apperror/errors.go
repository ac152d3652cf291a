package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an operation failure. Every kind maps to exactly one HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindUnauthorized
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindAuth:
		return "AUTH"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindConflict:
		return "CONFLICT"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus returns the status code the error boundary writes for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth, KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single error type returned by account operations.
// Message is safe to show to clients; the wrapped cause is not.
type Error struct {
	Kind    Kind
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetails attaches client-visible details (e.g. per-field validation messages).
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func Validation(message string) *Error   { return New(KindValidation, message) }
func Auth(message string) *Error         { return New(KindAuth, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }

func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// From extracts an *Error from err's chain. Anything else is reported as an
// internal error with a generic message so raw causes never reach clients.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(KindInternal, "internal server error", err)
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
