// Package main is the CLI entry point for shopagent, a tool-calling
// conversation service over a retail record store.
//
// Start the conversation gateway:
//
//	shopagent serve --config shopagent.yaml
//
// Start the standalone tool executor:
//
//	shopagent executor --config shopagent.yaml
//
// Credentials come from the environment: SHOPAGENT_DATABASE_URL for
// the record store, and GOOGLE_API_KEY / ANTHROPIC_API_KEY /
// OPENAI_API_KEY for the configured model provider.
package main

import (
	"fmt"
	"log/slog"
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
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "shopagent",
		Short:        "shopagent - conversational tool-calling service over a retail database",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildExecutorCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("shopagent %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
