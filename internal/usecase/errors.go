package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorMalformedPayload ErrorCode = "MALFORMED_PAYLOAD"
	ErrorUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// errAttrs returns slog attributes describing err, including the upstream HTTP
// status when there is one.
func errAttrs(err error) []any {
	attrs := []any{"err", err}
	if status, ok := upstreamStatusCode(err); ok {
		attrs = append(attrs, "status", status)
	}
	var ucErr *Error
	if errors.As(err, &ucErr) {
		attrs = append(attrs, "code", string(ucErr.Code), "reason", ucErr.Reason)
	}
	return attrs
}
