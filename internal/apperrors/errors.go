// Package apperrors defines the typed domain errors shared by the engine,
// storage and service layers.
package apperrors

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// Code is a machine-readable error category.
type Code string

const (
	CodeNotFound   Code = "NOT_FOUND"
	CodeValidation Code = "VALIDATION"
	CodeSync       Code = "SYNC"
	CodeInvariant  Code = "INVARIANT"
	CodePermission Code = "PERMISSION"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Additional context (entity kind, id, field)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrValidation = &Error{Code: CodeValidation}
	ErrSync       = &Error{Code: CodeSync}
	ErrInvariant  = &Error{Code: CodeInvariant}
	ErrPermission = &Error{Code: CodePermission}
)

// NotFound reports a reference to an entity that is not in the current state.
func NotFound(kind, id string) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s not found: %s", kind, id),
		Metadata: map[string]string{"kind": kind, "id": id},
	}
}

// Validation reports input rejected before any state mutation.
func Validation(field, message string) *Error {
	return &Error{
		Code:     CodeValidation,
		Message:  fmt.Sprintf("invalid %s: %s", field, message),
		Metadata: map[string]string{"field": field},
	}
}

// Sync reports that the store failed to persist a computed state change.
func Sync(op string, cause error) *Error {
	return &Error{
		Code:     CodeSync,
		Message:  fmt.Sprintf("failed to persist %s", op),
		Metadata: map[string]string{"op": op},
		Cause:    cause,
	}
}

// Invariant reports a broken engine invariant. It is never retried.
func Invariant(message string) *Error {
	return &Error{
		Code:    CodeInvariant,
		Message: "invariant violation: " + message,
	}
}

// PermissionDenied reports an operation the caller may not perform.
func PermissionDenied(message string) *Error {
	return &Error{
		Code:    CodePermission,
		Message: message,
	}
}

// CodeOf returns the domain code carried by err, or "" when err is not a
// domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// ConnectCode maps a domain code to the RPC status code.
func (c Code) ConnectCode() connect.Code {
	switch c {
	case CodeNotFound:
		return connect.CodeNotFound
	case CodeValidation:
		return connect.CodeInvalidArgument
	case CodeSync:
		return connect.CodeUnavailable
	case CodePermission:
		return connect.CodePermissionDenied
	default:
		return connect.CodeInternal
	}
}

// ToConnect converts err into a connect error with the mapped code.
func ToConnect(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	return connect.NewError(CodeOf(err).ConnectCode(), err)
}
