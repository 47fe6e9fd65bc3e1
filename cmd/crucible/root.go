package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crucible",
	Short: "Builder-validator cycle engine",
	Long: `Crucible runs build-validate cycles: a builder agent produces work,
independent validator agents review it in parallel, and a retry engine
decides whether to retry with feedback, escalate to a more capable
agent, or stop.

Core capabilities:
- Parses and aggregates structured validator verdicts (worst case wins)
- Classifies issues as retryable or not before burning attempts
- Detects issues that persist across attempts
- Escalates to architect, coordinator, or human based on failure shape
- Produces failure reports with root cause analysis for audit`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
