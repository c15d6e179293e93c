// Package errors provides typed errors for browsercore
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrConfig indicates a configuration error
	ErrConfig ErrorType = iota
	// ErrValidation indicates an input validation error
	ErrValidation
	// ErrDispatcher indicates the dispatcher refused work
	ErrDispatcher
	// ErrTask indicates a submitted task failed or panicked
	ErrTask
	// ErrFetch indicates a resource fetch failed
	ErrFetch
	// ErrTimeout indicates a timeout occurred
	ErrTimeout
	// ErrGate indicates no connection slot was available
	ErrGate
	// ErrStorage indicates a snapshot read or write failed
	ErrStorage
)

// BrowserError is the base error type for all browsercore errors
type BrowserError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns the error message
func (e *BrowserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", errorTypeString(e.Type), e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", errorTypeString(e.Type), e.Message)
}

// Unwrap returns the underlying cause
func (e *BrowserError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BrowserError of the same type and message.
// It lets package-level sentinels match copies that carry extra context.
func (e *BrowserError) Is(target error) bool {
	t, ok := target.(*BrowserError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// New creates a new BrowserError
func New(errType ErrorType, message string, cause error) *BrowserError {
	return &BrowserError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *BrowserError) WithContext(key string, value interface{}) *BrowserError {
	e.Context[key] = value
	return e
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var bErr *BrowserError
	if err == nil {
		return false
	}
	if errors.As(err, &bErr) {
		return bErr.Type == errType
	}
	return false
}

// IsRetryable returns true if the error is transient and retryable
func IsRetryable(err error) bool {
	var bErr *BrowserError
	if !errors.As(err, &bErr) {
		return false
	}

	switch bErr.Type {
	case ErrFetch, ErrGate, ErrTimeout:
		return true
	default:
		return false
	}
}

func errorTypeString(et ErrorType) string {
	switch et {
	case ErrConfig:
		return "CONFIG"
	case ErrValidation:
		return "VALIDATION"
	case ErrDispatcher:
		return "DISPATCHER"
	case ErrTask:
		return "TASK"
	case ErrFetch:
		return "FETCH"
	case ErrTimeout:
		return "TIMEOUT"
	case ErrGate:
		return "GATE"
	case ErrStorage:
		return "STORAGE"
	default:
		return "UNKNOWN"
	}
}

// Convenience functions for common errors

// ConfigError creates a configuration error
func ConfigError(message string, cause error) *BrowserError {
	return New(ErrConfig, message, cause)
}

// ValidationError creates a validation error
func ValidationError(message string, cause error) *BrowserError {
	return New(ErrValidation, message, cause)
}

// DispatcherError creates a dispatcher error
func DispatcherError(message string, cause error) *BrowserError {
	return New(ErrDispatcher, message, cause)
}

// TaskError creates a task failure error
func TaskError(message string, cause error) *BrowserError {
	return New(ErrTask, message, cause)
}

// FetchError creates a fetch error
func FetchError(message string, cause error) *BrowserError {
	return New(ErrFetch, message, cause)
}

// TimeoutError creates a timeout error
func TimeoutError(message string, cause error) *BrowserError {
	return New(ErrTimeout, message, cause)
}

// GateError creates a gate exhaustion error
func GateError(message string, cause error) *BrowserError {
	return New(ErrGate, message, cause)
}

// StorageError creates a snapshot storage error
func StorageError(message string, cause error) *BrowserError {
	return New(ErrStorage, message, cause)
}
