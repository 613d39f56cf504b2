package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "CodeBuddy Relay - OpenAI-compatible proxy for the CodeBuddy API",
	Long: `CodeBuddy Relay exposes an OpenAI-compatible chat completion API over the
CodeBuddy backend, which only speaks streaming.

It provides:
  - Streaming passthrough and non-streaming aggregation of completions
  - A rotating pool of stored credentials with automatic invalidation
  - An asynchronous browser login flow that mints new credentials
  - Per-model usage statistics and Prometheus metrics`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
