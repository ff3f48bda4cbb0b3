package mcp

import (
	"fmt"
	"strings"

	"github.com/kensakudev/kensaku/internal/indexer"
	"github.com/kensakudev/kensaku/internal/search"
)

// FormatSearchResults renders ranked hits as markdown for MCP clients.
func FormatSearchResults(query string, results []search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for %q\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s:%d (score: %.2f)\n\n", i+1, r.Path, r.Line, r.Score)
		fmt.Fprintf(&sb, "%s\n\n", r.Snippet)
	}

	return sb.String()
}

// FormatIndexReport renders an indexing run as a short confirmation message.
func FormatIndexReport(report *indexer.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Indexed %d file", report.Indexed)
	if report.Indexed != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " under %s", report.Root)
	if report.Skipped > 0 {
		fmt.Fprintf(&sb, " (%d skipped)", report.Skipped)
	}
	sb.WriteString(". Previous entries for this directory were replaced.")
	return sb.String()
}

// FormatUpdateResult renders a single-file update outcome.
func FormatUpdateResult(path string, action indexer.UpdateAction) string {
	switch action {
	case indexer.ActionUpdated:
		return fmt.Sprintf("Reindexed %s.", path)
	case indexer.ActionDeleted:
		return fmt.Sprintf("Removed %s from the index.", path)
	default:
		return fmt.Sprintf("Skipped %s: not eligible for indexing.", path)
	}
}

// FormatDeleteResult renders a root deletion outcome.
func FormatDeleteResult(root string, removed int) string {
	if removed == 0 {
		return fmt.Sprintf("No entries were indexed under %s.", root)
	}
	return fmt.Sprintf("Removed %d entr%s for %s.", removed, pluralEntry(removed), root)
}

func pluralEntry(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
