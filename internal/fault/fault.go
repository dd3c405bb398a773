// Package fault carries the outward-facing error taxonomy. Every failure
// that crosses a handler boundary is classified so a retrying caller can
// tell "fix your request" apart from "try again later".
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind partitions failures by who must act on them.
type Kind int

const (
	// KindUnexpected is anything uncategorized; surfaced as a 500 with a
	// generic message and logged with full context.
	KindUnexpected Kind = iota
	// KindClientParameter is a missing/malformed parameter, invalid date
	// or unsupported path. Never retried.
	KindClientParameter
	// KindUnsupportedPath is a request for an endpoint outside the static
	// table.
	KindUnsupportedPath
	// KindUpstreamAuth is a token-retrieval failure or a billing-API 401
	// after the single cache-invalidation retry.
	KindUpstreamAuth
	// KindUpstreamConnection is a refused/reset connection to an upstream.
	KindUpstreamConnection
	// KindUpstreamTimeout is an upstream deadline expiry.
	KindUpstreamTimeout
	// KindUpstreamBusiness is a non-200/203/204 header code from the
	// billing API; deterministic for a given input, never retried.
	KindUpstreamBusiness
)

func (k Kind) String() string {
	switch k {
	case KindClientParameter:
		return "client_parameter"
	case KindUnsupportedPath:
		return "unsupported_path"
	case KindUpstreamAuth:
		return "upstream_auth"
	case KindUpstreamConnection:
		return "upstream_connection"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamBusiness:
		return "upstream_business"
	default:
		return "unexpected"
	}
}

// Error is a classified failure. Message is safe to surface to the caller;
// the wrapped cause is for logs.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a classified error without a cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the classification, defaulting to KindUnexpected.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnexpected
}

// HTTPStatus maps a failure to the envelope status code the agent runtime
// expects: 400 bad params, 401 auth, 404 unsupported path, 503 connection,
// 504 timeout, 500 unexpected.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindClientParameter:
		return http.StatusBadRequest
	case KindUnsupportedPath:
		return http.StatusNotFound
	case KindUpstreamAuth:
		return http.StatusUnauthorized
	case KindUpstreamConnection:
		return http.StatusServiceUnavailable
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamBusiness:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-safe message. Unexpected errors collapse
// to a generic string so internals never leak into a chat channel.
func PublicMessage(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind != KindUnexpected {
		return fe.Message
	}
	return "시스템 내부 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
}

// Retryable reports whether a transport-level retry may help. Business and
// client failures are deterministic; only transport kinds qualify.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUpstreamConnection, KindUpstreamTimeout:
		return true
	default:
		return false
	}
}
