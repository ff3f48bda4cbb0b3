package errors

import (
	"fmt"
)

// KensakuError is the structured error type for kensaku.
// It provides context for error handling, logging, and user presentation.
type KensakuError struct {
	// Code is the unique error code (e.g., "ERR_201_PATH_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Tokenization, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *KensakuError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *KensakuError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with KensakuError.
func (e *KensakuError) Is(target error) bool {
	if t, ok := target.(*KensakuError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *KensakuError) WithDetail(key, value string) *KensakuError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *KensakuError) WithSuggestion(suggestion string) *KensakuError {
	e.Suggestion = suggestion
	return e
}

// New creates a new KensakuError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *KensakuError {
	return &KensakuError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a KensakuError from an existing error.
// The error's message becomes the KensakuError message.
func Wrap(code string, err error) *KensakuError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates a path-not-found error.
func NotFound(path string, cause error) *KensakuError {
	return New(ErrCodePathNotFound, fmt.Sprintf("path not found: %s", path), cause).
		WithDetail("path", path)
}

// NotADirectory creates an error for paths that exist but are not directories.
func NotADirectory(path string) *KensakuError {
	return New(ErrCodeNotADirectory, fmt.Sprintf("not a directory: %s", path), nil).
		WithDetail("path", path)
}

// PermissionDenied creates a permission error for an unreadable path.
func PermissionDenied(path string, cause error) *KensakuError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("permission denied: %s", path), cause).
		WithDetail("path", path)
}

// TokenizationError creates a morphological analysis error.
func TokenizationError(message string, cause error) *KensakuError {
	return New(ErrCodeTokenizationFailed, message, cause)
}

// StorageError creates an index storage error.
func StorageError(message string, cause error) *KensakuError {
	return New(ErrCodeStorageFailure, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string) *KensakuError {
	return New(ErrCodeInvalidInput, message, nil)
}

// FileNotIndexed creates an error for single-file updates on unknown paths.
func FileNotIndexed(path string) *KensakuError {
	return New(ErrCodeFileNotIndexed, fmt.Sprintf("file is not indexed: %s", path), nil).
		WithDetail("path", path).
		WithSuggestion("Run index_directory on a directory containing this file first.")
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ke, ok := err.(*KensakuError); ok {
		return ke.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a KensakuError.
// Returns empty string if not a KensakuError.
func GetCode(err error) string {
	if ke, ok := err.(*KensakuError); ok {
		return ke.Code
	}
	return ""
}

// GetCategory extracts the category from a KensakuError.
// Returns empty string if not a KensakuError.
func GetCategory(err error) Category {
	if ke, ok := err.(*KensakuError); ok {
		return ke.Category
	}
	return ""
}
