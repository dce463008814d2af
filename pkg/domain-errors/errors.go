// Package errors provides coded domain errors for the service boundary.
//
// Stores return infrastructure sentinels (pkg/platform/sentinel); services
// translate them into coded errors here so transports can map codes to
// status codes without inspecting error strings.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed or empty-effect input.
	CodeValidation Code = "validation"
	// CodeBadRequest marks a structurally invalid request.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks a reference to a nonexistent entity.
	CodeNotFound Code = "not_found"
	// CodeUnauthorized marks a missing or invalid session.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks an authenticated caller lacking a required role.
	CodeForbidden Code = "forbidden"
	// CodeConflict marks a state conflict with an existing entity.
	CodeConflict Code = "conflict"
	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a domain error with a classification code. The wrapped cause, if
// any, is preserved for errors.Is/As chains.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
