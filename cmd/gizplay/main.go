// Package main is the entry point for the gizplay CLI.
//
// Usage:
//
//	gizplay [flags] <command> [subcommand] [args]
//
// Commands:
//
//	play       - Play a URI, reporting position and seeking once
//	launch     - Build and run a pipeline from a YAML description
//	inspect    - List element kinds or describe one
//	history    - Manage remembered playback positions
//	config     - Configuration management
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/gizplay/cmd/gizplay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
