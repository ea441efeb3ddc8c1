package gateclient

import (
	goerrors "errors"
	"strconv"
)

// Code is a stable, comparable error classification for everything the
// core surfaces to a caller. Codes are never renamed once published; add
// new ones instead.
type Code string

// Error codes for gateclient operations. Stable: do not change once
// published.
const (
	// CodeCancelled indicates the caller aborted, or a per-request timeout fired.
	CodeCancelled Code = "GW-CANCELLED"

	// CodeBackpressure indicates a RetryQueue tier was at capacity at enqueue time.
	CodeBackpressure Code = "GW-BACKPRESSURE"

	// CodeRedirectLoop indicates a canonicalized self-redirect was detected.
	CodeRedirectLoop Code = "GW-REDIRECT-LOOP"

	// CodeRedirectsExhausted indicates the redirect budget was spent.
	CodeRedirectsExhausted Code = "GW-REDIRECTS-EXHAUSTED"

	// CodeRetriesExhausted indicates the retry budget was spent.
	CodeRetriesExhausted Code = "GW-RETRIES-EXHAUSTED"

	// CodeRateLimited is surfaced only when the caller opted out of auto-retry.
	CodeRateLimited Code = "GW-RATE-LIMITED"

	// CodeTransport indicates the Transport returned a non-HTTP error.
	CodeTransport Code = "GW-TRANSPORT"

	// CodeConfig indicates invalid input (missing or unknown method, missing or unparseable URL).
	CodeConfig Code = "GW-CONFIG"

	// CodeFatal indicates any other unexpected state.
	CodeFatal Code = "GW-FATAL"
)

// Error is the single error type returned across the package boundary.
// It carries a stable Code for switch-style handling, the operation that
// produced it, a human message, an optional last ResponseView (populated
// for CodeRetriesExhausted and CodeRateLimited), and an optional wrapped
// cause.
type Error struct {
	Code     Code
	Op       string
	Message  string
	Response ResponseView
	err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Code) + ": " + e.Op + ": " + e.Message
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause, if any, enabling errors.Is/errors.As
// traversal into transport-level errors.
func (e *Error) Unwrap() error {
	return e.err
}

// Is implements errors.Is matching by Code: two *Error values compare equal
// for errors.Is purposes whenever their Codes match.
func (e *Error) Is(target error) bool {
	var t *Error
	if !goerrors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, err: cause}
}

func newErrorWithResponse(code Code, op, message string, resp ResponseView, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Response: resp, err: cause}
}

// Sentinel errors for errors.Is comparison. Only Code is compared; Op,
// Message and the wrapped cause are ignored.
var (
	ErrCancelled          = &Error{Code: CodeCancelled}
	ErrBackpressure       = &Error{Code: CodeBackpressure}
	ErrRedirectLoop       = &Error{Code: CodeRedirectLoop}
	ErrRedirectsExhausted = &Error{Code: CodeRedirectsExhausted}
	ErrRetriesExhausted   = &Error{Code: CodeRetriesExhausted}
	ErrRateLimited        = &Error{Code: CodeRateLimited}
	ErrTransport          = &Error{Code: CodeTransport}
	ErrConfig             = &Error{Code: CodeConfig}
	ErrFatal              = &Error{Code: CodeFatal}
)

// NewCancelledError reports that the caller aborted or a deadline fired.
func NewCancelledError(op string, cause error) error {
	return newError(CodeCancelled, op, "request cancelled", cause)
}

// NewBackpressureError reports that a RetryQueue tier rejected an enqueue.
func NewBackpressureError(op, tier string) error {
	return newError(CodeBackpressure, op, "queue tier \""+tier+"\" is at capacity", nil)
}

// NewRedirectLoopError reports a canonicalized self-redirect.
func NewRedirectLoopError(op, url string) error {
	return newError(CodeRedirectLoop, op, "redirect loop detected at "+url, nil)
}

// NewRedirectsExhaustedError reports that the redirect budget was spent.
func NewRedirectsExhaustedError(op string, max int) error {
	return newError(CodeRedirectsExhausted, op, "exceeded max redirects ("+strconv.Itoa(max)+")", nil)
}

// NewRetriesExhaustedError reports that the retry budget was spent,
// carrying the last ResponseView observed.
func NewRetriesExhaustedError(op string, resp ResponseView, cause error) error {
	return newErrorWithResponse(CodeRetriesExhausted, op, "retries exhausted", resp, cause)
}

// NewRateLimitedError reports a 429/rate-limited response surfaced
// because the caller opted out of automatic retry.
func NewRateLimitedError(op string, resp ResponseView) error {
	return newErrorWithResponse(CodeRateLimited, op, "rate limited", resp, nil)
}

// NewTransportError wraps a non-HTTP error returned by the Transport.
func NewTransportError(op string, cause error) error {
	return newError(CodeTransport, op, "transport error", cause)
}

// NewConfigError reports invalid input.
func NewConfigError(op, message string) error {
	return newError(CodeConfig, op, message, nil)
}

// NewFatalError reports any other unexpected state.
func NewFatalError(op, message string, cause error) error {
	return newError(CodeFatal, op, message, cause)
}

// IsCode reports whether err is a *Error with the given Code.
func IsCode(err error, code Code) bool {
	var e *Error
	if !goerrors.As(err, &e) {
		return false
	}
	return e.Code == code
}
