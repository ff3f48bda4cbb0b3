// Package errors provides structured error handling for kensaku.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (paths, files, disk)
//   - 3XX: Tokenization errors
//   - 4XX: Validation errors
//   - 5XX: Storage and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryTokenization indicates morphological analysis errors.
	CategoryTokenization Category = "TOKENIZATION"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryStorage indicates index storage errors.
	CategoryStorage Category = "STORAGE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodePathNotFound     = "ERR_201_PATH_NOT_FOUND"
	ErrCodeNotADirectory    = "ERR_202_NOT_A_DIRECTORY"
	ErrCodePermissionDenied = "ERR_203_PERMISSION_DENIED"
	ErrCodeFileTooLarge     = "ERR_204_FILE_TOO_LARGE"
	ErrCodeFileNotIndexed   = "ERR_205_FILE_NOT_INDEXED"
	ErrCodeFileRead         = "ERR_206_FILE_READ"

	// Tokenization errors (300-399)
	ErrCodeTokenizationFailed = "ERR_301_TOKENIZATION_FAILED"
	ErrCodeInvalidEncoding    = "ERR_302_INVALID_ENCODING"
	ErrCodeDictionaryLoad     = "ERR_303_DICTIONARY_LOAD"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPath  = "ERR_402_INVALID_PATH"

	// Storage and internal errors (500-599)
	ErrCodeStorageFailure = "ERR_501_STORAGE_FAILURE"
	ErrCodeCorruptIndex   = "ERR_502_CORRUPT_INDEX"
	ErrCodeIndexClosed    = "ERR_503_INDEX_CLOSED"
	ErrCodeInternal       = "ERR_504_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryStorage
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_PATH_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryTokenization
	case '4':
		return CategoryValidation
	default:
		return CategoryStorage
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStorageFailure, ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeTokenizationFailed, ErrCodeInvalidEncoding, ErrCodeFileTooLarge:
		// Per-file errors: the indexer skips the file and continues.
		return SeverityWarning
	default:
		return SeverityError
	}
}
