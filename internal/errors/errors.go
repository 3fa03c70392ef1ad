// Package errors provides the unified error type used across the client data
// layer. It consolidates validation, configuration, cache and network errors
// into a single classified structure so callers can branch on error type
// instead of string matching.
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// ERROR CLASSIFICATION
// ============================================================================

// ErrorType defines the category of error for proper handling and reporting.
type ErrorType string

const (
	// Local errors
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeInternal      ErrorType = "INTERNAL"

	// Network-boundary errors
	ErrorTypeExternal ErrorType = "EXTERNAL"
	ErrorTypeTimeout  ErrorType = "TIMEOUT"
	ErrorTypeCanceled ErrorType = "CANCELED"
)

// ErrorCode is a stable machine-readable code for a specific failure.
type ErrorCode string

const (
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeInvalidQueryKey     ErrorCode = "INVALID_QUERY_KEY"
	CodeUnknownEntity       ErrorCode = "UNKNOWN_ENTITY"
	CodeDanglingReference   ErrorCode = "DANGLING_REFERENCE"
	CodeEntityNotFound      ErrorCode = "ENTITY_NOT_FOUND"
	CodeVersionConflict     ErrorCode = "VERSION_CONFLICT"
	CodeRequestFailed       ErrorCode = "REQUEST_FAILED"
	CodeRequestTimeout      ErrorCode = "REQUEST_TIMEOUT"
	CodeRequestCanceled     ErrorCode = "REQUEST_CANCELED"
	CodeCircuitOpen         ErrorCode = "CIRCUIT_OPEN"
	CodeDecodeFailed        ErrorCode = "DECODE_FAILED"
	CodeConfigInvalid       ErrorCode = "CONFIG_INVALID"
	CodeInternalError       ErrorCode = "INTERNAL_ERROR"
	CodeOptimisticMissing   ErrorCode = "OPTIMISTIC_MISSING"
	CodeSubscriptionClosed  ErrorCode = "SUBSCRIPTION_CLOSED"
	CodeServerErrorResponse ErrorCode = "SERVER_ERROR_RESPONSE"
)

// ============================================================================
// ERROR STRUCTURE
// ============================================================================

// Error is the single error type used by all packages in this module.
type Error struct {
	Type      ErrorType `json:"type"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`   // human-readable, surfaced to the UI verbatim
	Operation string    `json:"operation"` // the operation that failed, e.g. "tickets.create"
	Resource  string    `json:"resource"`  // the resource being operated on
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Operation, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithOperation returns a copy of the error annotated with the operation name.
func (e *Error) WithOperation(op string) *Error {
	clone := *e
	clone.Operation = op
	return &clone
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.Cause = cause
	return &clone
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

// NewValidation creates a validation error.
func NewValidation(code ErrorCode, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewConfiguration creates a configuration error. Configuration errors are not
// retryable; they require a code or config change.
func NewConfiguration(code ErrorCode, message string) *Error {
	return &Error{Type: ErrorTypeConfiguration, Code: code, Message: message}
}

// NewNotFound creates a not-found error for the given resource.
func NewNotFound(resource, message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Code: CodeEntityNotFound, Message: message, Resource: resource}
}

// NewExternal creates an error representing a failed network interaction.
// External errors are retryable by default since the server may recover.
func NewExternal(code ErrorCode, message string, cause error) *Error {
	return &Error{Type: ErrorTypeExternal, Code: code, Message: message, Cause: cause, Retryable: true}
}

// NewTimeout creates a timeout error for the given operation.
func NewTimeout(op string, cause error) *Error {
	return &Error{
		Type: ErrorTypeTimeout, Code: CodeRequestTimeout,
		Message: "request timed out", Operation: op, Cause: cause, Retryable: true,
	}
}

// NewCanceled creates a cancellation error. An aborted mutation is treated the
// same as a failed one for rollback purposes, so this carries the same shape.
func NewCanceled(op string, cause error) *Error {
	return &Error{
		Type: ErrorTypeCanceled, Code: CodeRequestCanceled,
		Message: "request canceled", Operation: op, Cause: cause,
	}
}

// NewInternal creates an internal error wrapping an unexpected failure.
func NewInternal(message string, cause error) *Error {
	return &Error{Type: ErrorTypeInternal, Code: CodeInternalError, Message: message, Cause: cause}
}

// ============================================================================
// CLASSIFICATION HELPERS
// ============================================================================

// IsType reports whether err is an *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsNotFound reports whether err represents a missing entity.
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool { return IsType(err, ErrorTypeConfiguration) }

// IsRetryable reports whether the failed operation may be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// UserMessage extracts the human-readable message to surface in a
// notification. For classified errors this is the Message field verbatim; for
// anything else it is err.Error().
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
