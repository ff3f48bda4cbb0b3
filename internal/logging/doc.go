// Package logging provides file-based logging with rotation for kensaku.
// CLI commands log to both stderr and ~/.kensaku/logs/; in MCP serve mode
// logs go to file only, because stdout and stderr belong to the JSON-RPC
// transport.
package logging
