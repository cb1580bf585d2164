// Package main is the entry point for the deepvoice CLI.
//
// Usage:
//
//	deepvoice [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the HTTP detection API and the gRPC health service
//	classify   - Classify audio files offline, one JSON result per line
//	features   - Print the MFCC mean vector of an audio file
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/ekisa-team/deepvoice/cmd/deepvoice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
