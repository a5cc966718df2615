// Package main is the CLI entry point for openclaw, a personal
// AI-assistant runtime.
//
// Start the runtime:
//
//	openclaw serve --config openclaw.yaml
//
// Inspect the event log:
//
//	openclaw events --type tool_execution --limit 20
//
// The OPENCLAW_CONFIG environment variable overrides the default config
// path when --config is not given.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "openclaw",
		Short:         "openclaw personal AI-assistant runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		buildServeCmd(),
		buildEventsCmd(),
		buildSkillsCmd(),
		buildSchemaCmd(),
		buildVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// resolveConfigPath applies the flag > env > default precedence.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("OPENCLAW_CONFIG"); env != "" {
		return env
	}
	return "openclaw.yaml"
}
