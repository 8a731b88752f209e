package qa

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures surfaced by the orchestration core.
type ErrorCode string

const (
	// ErrCodeToolExecution indicates a step's tool call returned an error.
	ErrCodeToolExecution ErrorCode = "TOOL_EXECUTION"

	// ErrCodeUnsupportedTool indicates no tool is registered for a step.
	ErrCodeUnsupportedTool ErrorCode = "UNSUPPORTED_TOOL"

	// ErrCodeUnknownSuite indicates neither test cases nor a known suite id were supplied.
	ErrCodeUnknownSuite ErrorCode = "UNKNOWN_SUITE"

	// ErrCodeValidation indicates a bug report failed schema validation.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeStorageIO indicates a read or write against durable storage failed.
	ErrCodeStorageIO ErrorCode = "STORAGE_IO"

	// ErrCodeConfiguration indicates required configuration is missing or invalid.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeDiscovery indicates sitemap retrieval or parsing failed.
	ErrCodeDiscovery ErrorCode = "DISCOVERY"

	// ErrCodeSubmission indicates a submission could not be processed.
	ErrCodeSubmission ErrorCode = "SUBMISSION"

	// ErrCodePublish indicates an issue tracker rejected or failed a request.
	ErrCodePublish ErrorCode = "PUBLISH"

	// ErrCodeNotFound indicates a record id does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidTransition indicates an illegal submission state change.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Error is the typed error used across the core.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error without a cause.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error around cause.
func WrapError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// HasCode reports whether err wraps an *Error with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ErrorCode) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsUnknownSuite returns true if err is an unknown suite error.
func IsUnknownSuite(err error) bool { return HasCode(err, ErrCodeUnknownSuite) }

// IsValidation returns true if err is a bug report validation error.
func IsValidation(err error) bool { return HasCode(err, ErrCodeValidation) }

// IsStorageIO returns true if err is a storage I/O error.
func IsStorageIO(err error) bool { return HasCode(err, ErrCodeStorageIO) }

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool { return HasCode(err, ErrCodeConfiguration) }

// IsPublish returns true if err is an issue tracker failure.
func IsPublish(err error) bool { return HasCode(err, ErrCodePublish) }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }

// IsInvalidTransition returns true if err is an illegal state change.
func IsInvalidTransition(err error) bool { return HasCode(err, ErrCodeInvalidTransition) }
