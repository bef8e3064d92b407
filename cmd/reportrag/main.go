// Package main provides the entry point for the reportrag CLI.
package main

import (
	"os"

	"github.com/siherrmann/reportrag/cmd/reportrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
