// Package apperrors defines the closed error taxonomy shared across every
// subsystem boundary. External-client and storage errors are mapped into
// one of these kinds before crossing into a handler or worker, so the HTTP
// translation in pkg/api has exactly one seam to reason about.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind is one of the closed set of error categories from the error handling design.
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindBadRequest          Kind = "bad_request"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindRateLimited         Kind = "rate_limited"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindGatewayHTML         Kind = "gateway_html"
	KindInternal            Kind = "internal"
)

// httpStatus maps each Kind to its user-visible HTTP status.
var httpStatus = map[Kind]int{
	KindUnauthorized:        401,
	KindForbidden:           403,
	KindBadRequest:          400,
	KindNotFound:            404,
	KindConflict:            409,
	KindRateLimited:         429,
	KindUpstreamUnavailable: 503,
	KindGatewayHTML:         502,
	KindInternal:            500,
}

// retryable reports whether the kind is safe for the caller (provider or worker) to retry.
var retryable = map[Kind]bool{
	KindRateLimited:         true,
	KindUpstreamUnavailable: true,
	KindGatewayHTML:         true,
}

// Error is the concrete error type carried across subsystem boundaries.
type Error struct {
	Kind         Kind
	Message      string
	RetryAfterMS int64 // optional, only meaningful when Retryable() is true
	RawBody      string
	cause        error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the status code this error maps to.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Kind]; ok {
		return s
	}
	return 500
}

// Retryable reports whether the provider (for webhook responses) or caller
// should retry this error.
func (e *Error) Retryable() bool {
	return retryable[e.Kind]
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithRetryAfter attaches a Retry-After duration (honored verbatim over computed backoff).
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfterMS = d.Milliseconds()
	return e
}

// WithRawBody attaches the raw upstream response body for diagnostics.
func (e *Error) WithRawBody(body string) *Error {
	e.RawBody = body
	return e
}

// As reports whether err is (or wraps) an *Error, returning it if so.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Truncate trims a worker's last_error field to the documented 200 chars,
// replacing HTML bodies with a generic message so raw markup never leaks
// into an admin-visible record.
func Truncate(msg string) string {
	if looksLikeHTML(msg) {
		msg = "Database temporarily unavailable"
	}
	if r := []rune(msg); len(r) > 200 {
		return string(r[:200])
	}
	return msg
}

func looksLikeHTML(s string) bool {
	for i := 0; i < len(s) && i < 256; i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '<':
			return true
		default:
			return false
		}
	}
	return false
}
