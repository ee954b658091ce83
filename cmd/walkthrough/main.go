package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "walkthrough",
	Short: "Drive the test-case generation workflow from the terminal",
	Long: `Runs the guided test-case workflow against the fixture data or a live
backend, parses generated test-case documents, and tails workflow events.

Examples:
  walkthrough run --project "EMR Integration" --prompt "HIPAA audit logging"
  walkthrough run --backend http://localhost:8000
  walkthrough parse testcases.md
  walkthrough events --nats nats://localhost:4222 --session session-emr-001`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("❌ %v", err)
		os.Exit(1)
	}
}
