// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-writer.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrNotSupported     = fmt.Errorf("operation not supported")
	ErrAlreadyExists    = fmt.Errorf("resource already exists")
	ErrNotFound         = fmt.Errorf("resource not found")
	ErrAlreadyAttached  = fmt.Errorf("endpoint already attached")
	ErrNotAttached      = fmt.Errorf("no endpoint attached")
	ErrBlockingEndpoint = fmt.Errorf("endpoint is in blocking mode")
	ErrNoCallback       = fmt.Errorf("event for handle without callback")
	ErrUnusable         = fmt.Errorf("writer source is unusable")
	ErrClosed           = fmt.Errorf("resource is closed")
	ErrNoReader         = fmt.Errorf("fifo has no reader")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeAlreadyAttached
	ErrCodeNotAttached
	ErrCodeBlocking
	ErrCodeRegistration
	ErrCodeNoCallback
	ErrCodeCallbackPanic
	ErrCodeUnusable
	ErrCodeInternal
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeInvalidArgument: ErrInvalidArgument,
	ErrCodeNotSupported:    ErrNotSupported,
	ErrCodeAlreadyExists:   ErrAlreadyExists,
	ErrCodeNotFound:        ErrNotFound,
	ErrCodeAlreadyAttached: ErrAlreadyAttached,
	ErrCodeNotAttached:     ErrNotAttached,
	ErrCodeBlocking:        ErrBlockingEndpoint,
	ErrCodeNoCallback:      ErrNoCallback,
	ErrCodeUnusable:        ErrUnusable,
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error // underlying cause, may be nil
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

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel error associated with the code.
func (e *Error) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
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

// CodeOf extracts the ErrorCode of err, or ErrCodeInternal when err carries none.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// PanicError converts a recovered panic value into an error.
func PanicError(where string, v any) *Error {
	if err, ok := v.(error); ok {
		return WrapError(ErrCodeCallbackPanic, "panic in "+where, err)
	}
	return NewError(ErrCodeCallbackPanic, fmt.Sprintf("panic in %s: %v", where, v))
}
