// Package apperr is the error taxonomy shared by every service in the portal
// core. Route handlers translate a Kind into a response status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error for the request boundary.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindConflictExhausted Kind = "CONFLICT_EXHAUSTED"
	KindUpstream          Kind = "UPSTREAM_FAILURE"
	KindRateLimited       Kind = "RATE_LIMITED"
)

// Error carries a Kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	// ClientFault marks upstream failures caused by the caller's input
	// (e.g. a signed URL requested for a path the provider rejects).
	ClientFault bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to its response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		if e.ClientFault {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWrap keeps the domain sentinel reachable through errors.Is.
func ValidationWrap(err error, format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(entity string, id any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func ConflictExhausted(err error, msg string) error {
	return &Error{Kind: KindConflictExhausted, Message: msg, Err: err}
}

func RateLimited(msg string) error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

// Upstream wraps a storage, email or signed-URL provider failure. The
// provider's own message stays in the chain.
func Upstream(provider string, err error) error {
	return &Error{Kind: KindUpstream, Err: pkgerrors.Wrap(err, provider)}
}

// UpstreamClient is Upstream for failures caused by the caller's input.
func UpstreamClient(provider string, err error) error {
	return &Error{Kind: KindUpstream, ClientFault: true, Err: pkgerrors.Wrap(err, provider)}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the response status for err; errors outside the taxonomy
// are treated as internal failures.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
