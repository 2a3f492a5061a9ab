package router

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorState      ErrorCode = "STATE_ERROR"
	ErrorGeneration ErrorCode = "GENERATION_ERROR"
	ErrorTransport  ErrorCode = "TRANSPORT_ERROR"
	ErrorInternal   ErrorCode = "INTERNAL_ERROR"
)

// Error is the classified failure logged at the router boundary.
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
		return fmt.Sprintf("router: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("router: %s (%s): %v", e.Code, e.Reason, e.Err)
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

func generationError(err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorGeneration, "openai_rate_limited", err)
	}
	return newError(ErrorGeneration, "openai_error", err)
}

// asError classifies err, keeping an existing *Error as-is.
func asError(err error) *Error {
	var routerErr *Error
	if errors.As(err, &routerErr) {
		return routerErr
	}
	return newError(ErrorInternal, "unexpected_error", err)
}
