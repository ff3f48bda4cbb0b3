package errors

import (
	"fmt"
	"log/slog"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ke, ok := err.(*KensakuError)
	if !ok {
		// Wrap standard error
		ke = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	// Error message with code
	sb.WriteString(fmt.Sprintf("Error: %s\n", ke.Message))

	// Suggestion if available
	if ke.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ke.Suggestion))
	}

	// Code reference
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ke.Code))

	return sb.String()
}

// LogAttrs returns slog attributes describing the error.
// Suitable for structured logging of failures.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	ke, ok := err.(*KensakuError)
	if !ok {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error", ke.Message),
		slog.String("code", ke.Code),
		slog.String("category", string(ke.Category)),
		slog.String("severity", string(ke.Severity)),
	}

	if ke.Cause != nil {
		attrs = append(attrs, slog.String("cause", ke.Cause.Error()))
	}

	for k, v := range ke.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}

	return attrs
}
