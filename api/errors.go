// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-reactor.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrSchedulerClosed = fmt.Errorf("scheduler is closed")
	ErrServerClosed    = fmt.Errorf("server is closed")
	ErrAlreadyRunning  = fmt.Errorf("server already running")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotSupported    = fmt.Errorf("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeNotSupported
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the wrapped sentinel for errors.Is.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// InvalidArgument builds an ErrCodeInvalidArgument error wrapping ErrInvalidArgument.
func InvalidArgument(message string) *Error {
	e := NewError(ErrCodeInvalidArgument, message)
	e.Err = ErrInvalidArgument
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
