// Command matsel ranks catalog materials against property requirements.
package main

import (
	"os"

	"github.com/Arisex96/bio-mat-new/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// Run has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
