// Package main provides the entry point for the kensaku CLI.
package main

import (
	"os"

	"github.com/kensakudev/kensaku/cmd/kensaku/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
