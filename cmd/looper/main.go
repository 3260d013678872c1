// Package main is the entry point for the looper CLI.
// Looper drives repeated, unattended agent iterations until a
// task-specific stopping condition is met.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tOgg1/looper/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A project-local .env may carry LOOPER_* overrides.
	_ = godotenv.Load()

	if err := cli.Execute(version, commit, date); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if !exitErr.Printed {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
