package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/imdanibytes/nexus-agent-sub000/internal/agent"
	"github.com/imdanibytes/nexus-agent-sub000/internal/config"
	"github.com/imdanibytes/nexus-agent-sub000/internal/observability"
	"github.com/imdanibytes/nexus-agent-sub000/internal/store"
	"github.com/imdanibytes/nexus-agent-sub000/internal/tools"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/agui"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		agentID    string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent from the terminal",
		Long: `Run conversation turns directly against the orchestrator, without a server.
Text streams to stdout as it is generated; tool calls run server-side.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, agentID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentd.yaml",
		"Path to YAML configuration file")
	cmd.Flags().StringVarP(&agentID, "agent", "a", "",
		"Agent id to chat with (default: the configured active agent)")
	return cmd
}

func runChat(ctx context.Context, configPath, agentID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configureLogging(cfg.Logging, false)

	resolver, err := config.NewResolver(cfg)
	if err != nil {
		return fmt.Errorf("failed to build providers: %w", err)
	}

	orchestrator, err := agent.NewOrchestrator(agent.OrchestratorConfig{
		Locks:        agent.NewTurnLocks(),
		Store:        store.NewMemory(),
		Config:       resolver,
		Builtins:     tools.Builtins(),
		GlobalFilter: resolver.GlobalFilter(),
		Pipeline:     buildPipeline(cfg.Turn),
		MaxRounds:    cfg.Turn.MaxRounds,
		TrimKeepLast: cfg.Turn.TrimKeepLast,
		Executor: tools.ExecutorConfig{
			MaxConcurrency: cfg.Tools.MaxConcurrency,
			CallTimeout:    cfg.Tools.CallTimeout,
		},
		Pricing: cfg.Pricing,
		Metrics: observability.NewMetrics(),
		Logger:  slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	conversationID := fmt.Sprintf("chat-%d", time.Now().Unix())
	var transcript []models.WireMessage

	fmt.Println("Chat started. Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		transcript = append(transcript, models.WireMessage{Role: models.RoleUser, Content: line})
		result, err := runChatTurn(ctx, orchestrator, conversationID, agentID, transcript)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			transcript = transcript[:len(transcript)-1]
			continue
		}
		transcript = appendTurnOutput(transcript, result)
	}
}

// runChatTurn streams one turn's text to stdout.
func runChatTurn(ctx context.Context, orchestrator *agent.Orchestrator, conversationID, agentID string, transcript []models.WireMessage) (*agent.TurnResult, error) {
	events := make(chan agui.Event, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case agui.EventTextMessageContent:
				fmt.Print(ev.Delta)
			case agui.EventToolCallStart:
				fmt.Printf("\n[tool: %s]\n", ev.ToolCallName)
			}
		}
		fmt.Println()
	}()

	result, err := orchestrator.BeginTurn(ctx, agent.TurnRequest{
		ConversationID: conversationID,
		Messages:       transcript,
		Sink:           agui.NewChanSink(events),
		AgentID:        agentID,
	})
	close(events)
	<-done
	return result, err
}

// appendTurnOutput folds the turn's parts back into the local transcript for
// the next turn's prompt.
func appendTurnOutput(transcript []models.WireMessage, result *agent.TurnResult) []models.WireMessage {
	assistant := models.WireMessage{Role: models.RoleAssistant}
	var results []models.ToolCall
	for _, part := range result.Parts {
		switch part.Kind {
		case models.PartText:
			assistant.Content += part.Text
		case models.PartToolCall:
			tc := *part.ToolCall
			assistant.ToolCalls = append(assistant.ToolCalls, models.ToolCall{
				ID: tc.ID, Name: tc.Name, Args: tc.Args,
			})
			if tc.Result != "" {
				results = append(results, models.ToolCall{
					ID: tc.ID, Result: tc.Result, IsError: tc.IsError,
				})
			}
		}
	}
	transcript = append(transcript, assistant)
	if len(results) > 0 {
		transcript = append(transcript, models.WireMessage{Role: models.RoleUser, ToolCalls: results})
	}
	return transcript
}
