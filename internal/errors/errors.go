// Package errors provides a lightweight structured error type (BookVersionsError)
// for category-based classification and retry semantics in the job runtime, HTTP API and CLI.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an error for classification.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryPermission ErrorCategory = "permission"
	CategoryNotFound   ErrorCategory = "not_found"

	// Publication pipeline errors
	CategoryCycle      ErrorCategory = "cycle"
	CategoryResolution ErrorCategory = "resolution"
	CategoryStorage    ErrorCategory = "storage"

	// Runtime and infrastructure errors
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// BookVersionsError is a structured error with category, retryability, and context.
type BookVersionsError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for BookVersionsError.
type ContextFields map[string]any

func (e *BookVersionsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

func (e *BookVersionsError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *BookVersionsError) WithContext(key string, value any) *BookVersionsError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new BookVersionsError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *BookVersionsError {
	return &BookVersionsError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new BookVersionsError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *BookVersionsError {
	return &BookVersionsError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable BookVersionsError that wraps an existing error.
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *BookVersionsError {
	return &BookVersionsError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// As returns the outermost BookVersionsError in err's chain.
func As(err error) (*BookVersionsError, bool) {
	var bve *BookVersionsError
	if stdErrors.As(err, &bve) {
		return bve, true
	}
	return nil, false
}

// IsCategory checks if an error (or one it wraps) belongs to a specific category.
func IsCategory(err error, category ErrorCategory) bool {
	if bve, ok := As(err); ok {
		return bve.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if bve, ok := As(err); ok {
		return bve.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal for foreign errors.
func GetCategory(err error) ErrorCategory {
	if bve, ok := As(err); ok {
		return bve.Category
	}
	return CategoryInternal
}

// ValidationError creates a new validation error (400 Bad Request).
func ValidationError(message string) *BookVersionsError {
	return New(CategoryValidation, SeverityWarning, message)
}
