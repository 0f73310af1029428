// Package errors provides coded domain errors for the audiody core.
//
// Usage:
//
//	// In the orchestrator - return typed errors
//	if resp.StatusCode != http.StatusOK {
//	    return errors.Networkf("unexpected status %d", resp.StatusCode)
//	}
//
//	// In callers - match on the code
//	if errors.Is(err, errors.ErrNetwork) {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the core.
const (
	CodeNetwork       Code = "NETWORK"
	CodeFilesystem    Code = "FILESYSTEM"
	CodeExternalTool  Code = "EXTERNAL_TOOL"
	CodeEncode        Code = "ENCODE"
	CodeParse         Code = "PARSE"
	CodeChannelClosed Code = "CHANNEL_CLOSED"
	CodeNotFound      Code = "NOT_FOUND"
	CodeValidation    Code = "VALIDATION"
	CodeInvalidState  Code = "INVALID_STATE"
	CodeInternal      Code = "INTERNAL"
)

// HTTPStatus returns the status the control API reports for a code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeParse:
		return http.StatusBadRequest
	case CodeInvalidState:
		return http.StatusConflict
	case CodeNetwork, CodeExternalTool:
		return http.StatusBadGateway
	case CodeChannelClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNetwork       = &Error{Code: CodeNetwork, Message: "network error"}
	ErrFilesystem    = &Error{Code: CodeFilesystem, Message: "filesystem error"}
	ErrExternalTool  = &Error{Code: CodeExternalTool, Message: "external tool error"}
	ErrEncode        = &Error{Code: CodeEncode, Message: "encode error"}
	ErrParse         = &Error{Code: CodeParse, Message: "parse error"}
	ErrChannelClosed = &Error{Code: CodeChannelClosed, Message: "channel closed"}
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInvalidState  = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrInternal      = &Error{Code: CodeInternal, Message: "internal error"}
)

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Networkf creates a network error with formatted message.
func Networkf(format string, args ...any) *Error {
	return &Error{Code: CodeNetwork, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// InvalidStatef creates an invalid state error with formatted message.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// ExternalToolf creates an external tool error with formatted message.
func ExternalToolf(format string, args ...any) *Error {
	return &Error{Code: CodeExternalTool, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
