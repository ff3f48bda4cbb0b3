// Package mcp implements the Model Context Protocol server for kensaku.
// Tool handlers bridge MCP clients to the indexer and search executor.
package mcp

import (
	"context"
	"errors"
	"fmt"

	kerrors "github.com/kensakudev/kensaku/internal/errors"
)

// JSON-RPC error codes used by the tool handlers.
const (
	// ErrCodeNotFound covers missing paths, roots, and never-indexed files.
	ErrCodeNotFound = -32001

	// ErrCodePermission indicates the server cannot read the target.
	ErrCodePermission = -32002

	// ErrCodeStorage indicates an index storage failure.
	ErrCodeStorage = -32003

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32004

	// Standard JSON-RPC codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternal      = -32603
)

// MCPError is a JSON-RPC protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts internal errors to JSON-RPC errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var kerr *kerrors.KensakuError
	if errors.As(err, &kerr) {
		return mapKensakuError(kerr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was cancelled."}
	default:
		return &MCPError{Code: ErrCodeInternal, Message: "Internal server error."}
	}
}

func mapKensakuError(ke *kerrors.KensakuError) *MCPError {
	message := ke.Message
	if ke.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ke.Message, ke.Suggestion)
	}

	switch ke.Code {
	case kerrors.ErrCodePathNotFound, kerrors.ErrCodeFileNotIndexed:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case kerrors.ErrCodePermissionDenied:
		return &MCPError{Code: ErrCodePermission, Message: message}
	}

	switch ke.Category {
	case kerrors.CategoryStorage:
		return &MCPError{Code: ErrCodeStorage, Message: message}
	case kerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case kerrors.CategoryIO:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternal, Message: message}
	}
}
