// Package dexerr defines the error taxonomy shared by the routing and
// execution engine. Errors carry a stable machine code so callers can
// distinguish "the dependency is down" from "this request was invalid"
// without matching message strings.
package dexerr

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	// CodeInvalidParams marks malformed input. Never retried.
	CodeInvalidParams Code = "invalid_parameters"
	// CodeNoRoute marks an unreachable token pair. Never retried; a
	// deterministic graph gives the same answer.
	CodeNoRoute Code = "no_route"
	// CodeUnavailable marks an open circuit or exhausted retries. Callers
	// should back off before retrying the whole operation.
	CodeUnavailable Code = "service_unavailable"
	// CodeSlippageExceeded marks a trade rejected by slippage policy.
	CodeSlippageExceeded Code = "slippage_exceeded"
	// CodePriceManipulation marks a realized or quoted output outside
	// policy bounds in a way that suggests manipulation.
	CodePriceManipulation Code = "price_manipulation"
	// CodeExecutionFailed marks an on-chain failure surfaced by an adapter
	// after its own retries were exhausted.
	CodeExecutionFailed Code = "execution_failed"
	// CodePartialRoute marks a multi-hop swap that failed after earlier
	// hops already settled on-chain.
	CodePartialRoute Code = "partial_route_failure"
)

// Error is a coded engine error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code, so
// errors.Is(err, dexerr.New(code, "")) works on wrapped chains.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a coded error around a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from an error chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}
