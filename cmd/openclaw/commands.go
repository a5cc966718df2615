package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command running the full runtime.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the openclaw runtime",
		Long: `Start the runtime with all configured channels and providers.

Loads the config file, opens the event log, starts the enabled channel
adapters and the scheduler, and serves until SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  openclaw serve

  # Start with custom config and debug logging
  openclaw serve --config /etc/openclaw/openclaw.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML or JSON5)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// buildEventsCmd creates the "events" command querying the event log.
func buildEventsCmd() *cobra.Command {
	var opts eventsOptions
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the operational event log",
		Example: `  # Recent tool executions
  openclaw events --type tool_execution --limit 20

  # Failures mentioning a tool, full-text
  openclaw events --search "permission denied" --failures

  # Aggregate statistics
  openclaw events --stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = resolveConfigPath(opts.configPath)
			return runEvents(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&opts.eventType, "type", "", "Filter by event type")
	cmd.Flags().StringVar(&opts.tool, "tool", "", "Filter by tool name")
	cmd.Flags().StringVar(&opts.agent, "agent", "", "Filter by agent id")
	cmd.Flags().StringVar(&opts.search, "search", "", "Full-text search over tool, error, and tags")
	cmd.Flags().StringVar(&opts.since, "since", "", "Only events after this RFC3339 time or duration ago (e.g. 24h)")
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "Maximum entries to print")
	cmd.Flags().BoolVar(&opts.failures, "failures", false, "Only failed entries")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Print aggregate statistics instead of entries")
	return cmd
}

// buildSkillsCmd creates the "skills" command group.
func buildSkillsCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "List discovered skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkills(cmd.OutOrStdout(), resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}

// buildSchemaCmd creates the "schema" command printing the config schema.
func buildSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd.OutOrStdout())
		},
	}
}

// buildVersionCmd creates the "version" command.
func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout())
		},
	}
}
