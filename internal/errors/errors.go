// Package errors provides structured error types for the epforge pipeline.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline component.
type ErrorCategory string

const (
	ErrCategoryHeader   ErrorCategory = "HEADER"
	ErrCategoryDecode   ErrorCategory = "DECODE"
	ErrCategorySink     ErrorCategory = "SINK"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Header codes
	CodeHeaderIncomplete = "HEADER_INCOMPLETE"

	// Decode codes
	CodeFieldCountMismatch = "FIELD_COUNT_MISMATCH"
	CodeSkipRatioExceeded  = "SKIP_RATIO_EXCEEDED"

	// Sink codes
	CodeSinkFailure = "SINK_FAILURE"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only storage-level
// transfers can be retried; parse and sink failures require a fresh run.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryStorage && code == CodeUploadFailed
}

// Convenience constructors for common errors.

// NewHeaderIncomplete reports end-of-stream before a full schema was recovered.
func NewHeaderIncomplete(message string) *PipelineError {
	return New(ErrCategoryHeader, CodeHeaderIncomplete, message)
}

// NewFieldCountMismatch reports a data line whose field count disagrees with
// the schema's column count. Recoverable: the caller skips the line.
func NewFieldCountMismatch(expected, actual int) *PipelineError {
	e := New(ErrCategoryDecode, CodeFieldCountMismatch,
		fmt.Sprintf("expected %d fields, got %d", expected, actual))
	return e.WithDetails(map[string]interface{}{
		"expected": expected,
		"actual":   actual,
	})
}

// NewSinkError reports a failed batch handoff. Fatal to the run.
func NewSinkError(message string, cause error) *PipelineError {
	return Wrap(ErrCategorySink, CodeSinkFailure, message, cause)
}

// NewStorageError reports an object storage failure.
func NewStorageError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

// NewConfigError reports an invalid configuration.
func NewConfigError(message string) *PipelineError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

// NewInternalError reports an unexpected failure.
func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
