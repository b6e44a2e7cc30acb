// Package main provides the CLI entry point for the agentd conversational
// turn daemon.
//
// agentd connects websocket clients to LLM providers (Anthropic, OpenAI)
// through a turn orchestrator with server-side tool execution, client tool
// hand-off, and context compaction.
//
// # Basic Usage
//
// Start the server:
//
//	agentd serve --config agentd.yaml
//
// Chat from the terminal without a server:
//
//	agentd chat --config agentd.yaml
//
// # Environment Variables
//
// Configuration values can reference the environment:
//
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/imdanibytes/nexus-agent-sub000/internal/config"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
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
		Use:   "agentd",
		Short: "agentd - conversational agent turn daemon",
		Long: `agentd runs LLM-driven conversation turns: streamed inference, concurrent
tool execution, client tool hand-off, and context compaction, exposed over a
websocket event protocol.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
	)
	return rootCmd
}

// configureLogging replaces the default logger per the loaded config.
func configureLogging(cfg config.LoggingConfig, debug bool) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
