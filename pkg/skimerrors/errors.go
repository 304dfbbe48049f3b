// Package skimerrors provides structured error handling for skimmer with
// error categorization, key-value context, and stack traces captured at
// creation points.
//
// Errors are categorized by type, which drives handling strategy: delivery
// and connection failures are recoverable (requeue/retry at the
// orchestrator), configuration and validation failures are fatal at load
// time, and capacity failures signal data loss and must be reported loudly.
package skimerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents unexpected internal errors.
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors, fatal at load time.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeValidation represents validation errors, including invalid
	// SQL identifiers in source definitions.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConnection represents source/sink connection errors.
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeQuery represents extraction query failures.
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeDelivery represents sink delivery failures (transport error
	// or non-2xx response).
	ErrorTypeDelivery ErrorType = "delivery"
	// ErrorTypeCapacity represents retry-queue capacity rejections. These
	// are data-loss events, distinct from a normal retry.
	ErrorTypeCapacity ErrorType = "capacity"
	// ErrorTypeData represents data processing errors.
	ErrorTypeData ErrorType = "data"
	// ErrorTypeTimeout represents timeout errors.
	ErrorTypeTimeout ErrorType = "timeout"
)

// Error is a structured error with a category, optional cause, and
// key-value details for diagnostics.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame of the call stack captured at error
// creation.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail to the error. Chainable.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type, capturing the call stack.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates an error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps err with a type and message, preserving it as the cause.
// If err is already a structured Error its stack is preserved. Returns
// nil for a nil err.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether err carries the given error type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsRetryable reports whether the error category is worth retrying.
// Delivery, connection, and timeout errors are; configuration,
// validation, and capacity errors are not.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeDelivery, ErrorTypeConnection, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}
	return frames
}
