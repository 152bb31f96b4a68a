// Package main is the entry point for the hireplane CLI.
// The CLI is the developer terminal tool for interacting with the hireplane API.
package main

import (
	"os"

	"hireplane/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
