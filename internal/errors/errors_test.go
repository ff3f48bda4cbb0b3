package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKensakuError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with KensakuError
	kenErr := New(ErrCodePathNotFound, "path not found: /tmp/docs", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, kenErr)
	assert.Equal(t, originalErr, errors.Unwrap(kenErr))
	assert.True(t, errors.Is(kenErr, originalErr))
}

func TestKensakuError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "path error",
			code:     ErrCodePathNotFound,
			message:  "path not found: /tmp/docs",
			expected: "[ERR_201_PATH_NOT_FOUND] path not found: /tmp/docs",
		},
		{
			name:     "tokenization error",
			code:     ErrCodeTokenizationFailed,
			message:  "invalid utf-8 sequence",
			expected: "[ERR_301_TOKENIZATION_FAILED] invalid utf-8 sequence",
		},
		{
			name:     "storage error",
			code:     ErrCodeStorageFailure,
			message:  "transaction failed",
			expected: "[ERR_501_STORAGE_FAILURE] transaction failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestKensakuError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeStorageFailure, "first failure", nil)
	err2 := New(ErrCodeStorageFailure, "second failure", nil)
	err3 := New(ErrCodePathNotFound, "not found", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodePathNotFound, CategoryIO},
		{ErrCodePermissionDenied, CategoryIO},
		{ErrCodeTokenizationFailed, CategoryTokenization},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeStorageFailure, CategoryStorage},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, categoryFromCode(tt.code))
		})
	}
}

func TestSeverity_PerFileErrorsAreWarnings(t *testing.T) {
	// Tokenization and encoding failures are skip-and-continue for the indexer.
	assert.Equal(t, SeverityWarning, New(ErrCodeTokenizationFailed, "x", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeInvalidEncoding, "x", nil).Severity)

	// Storage failures abort the whole operation.
	assert.True(t, IsFatal(New(ErrCodeStorageFailure, "x", nil)))
	assert.False(t, IsFatal(New(ErrCodePathNotFound, "x", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestHelpers_AttachDetails(t *testing.T) {
	err := NotFound("/data/docs", nil)
	assert.Equal(t, ErrCodePathNotFound, err.Code)
	assert.Equal(t, "/data/docs", err.Details["path"])

	upd := FileNotIndexed("/data/docs/a.txt")
	assert.Equal(t, ErrCodeFileNotIndexed, upd.Code)
	assert.NotEmpty(t, upd.Suggestion)
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := NotFound("/no/such/dir", nil).WithSuggestion("Check the path and try again.")
	out := FormatForCLI(err)
	assert.Contains(t, out, "Error: path not found: /no/such/dir")
	assert.Contains(t, out, "Hint: Check the path and try again.")
	assert.Contains(t, out, "Code: ERR_201_PATH_NOT_FOUND")
}
