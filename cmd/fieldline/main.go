package main

import (
	"fmt"
	"os"

	"github.com/fieldlinehq/fieldline/cmd/fieldline/cli"
)

// Populated by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
