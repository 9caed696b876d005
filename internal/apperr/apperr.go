package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	NotFound        Kind = "NOT_FOUND"
	Forbidden       Kind = "FORBIDDEN"
	Unauthorized    Kind = "UNAUTHORIZED"
	LimitExceeded   Kind = "LIMIT_EXCEEDED"
	InvalidArgument Kind = "INVALID_ARGUMENT"
	Busy            Kind = "BUSY"
	UpstreamFailure Kind = "UPSTREAM_FAILURE"
	Internal        Kind = "INTERNAL"
)

// Error is the error type surfaced by the case core to its callers.
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

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the taxonomy kind of err; errors outside the taxonomy are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human-readable part of err without wrapped causes for taxonomy errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Unauthorized:
		return http.StatusUnauthorized
	case LimitExceeded:
		return http.StatusUnprocessableEntity
	case InvalidArgument:
		return http.StatusBadRequest
	case Busy:
		return http.StatusServiceUnavailable
	case UpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
