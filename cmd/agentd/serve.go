package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/imdanibytes/nexus-agent-sub000/internal/agent"
	"github.com/imdanibytes/nexus-agent-sub000/internal/compaction"
	"github.com/imdanibytes/nexus-agent-sub000/internal/config"
	"github.com/imdanibytes/nexus-agent-sub000/internal/gateway"
	"github.com/imdanibytes/nexus-agent-sub000/internal/observability"
	"github.com/imdanibytes/nexus-agent-sub000/internal/store"
	"github.com/imdanibytes/nexus-agent-sub000/internal/tools"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentd websocket server",
		Long: `Start the turn daemon: load configuration, build provider clients and the
conversation store, and serve the websocket event protocol plus a metrics
endpoint. Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with the default config
  agentd serve

  # Start with a custom config and debug logging
  agentd serve --config /etc/agentd/production.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentd.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configureLogging(cfg.Logging, debug)

	slog.Info("starting agentd",
		"version", version,
		"commit", commit,
		"config", configPath,
	)

	conversations, closeStore, err := buildStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer closeStore()

	resolver, err := config.NewResolver(cfg)
	if err != nil {
		return fmt.Errorf("failed to build providers: %w", err)
	}

	tracer, shutdownTracer, err := observability.NewTracer(ctx, observability.TraceConfig{
		ServiceName:    "agentd",
		ServiceVersion: version,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	frontendDefs, err := cfg.FrontendToolDefinitions()
	if err != nil {
		return fmt.Errorf("failed to build frontend tools: %w", err)
	}

	bridge := tools.NewBridge(cfg.Tools.BridgeTimeout)
	orchestrator, err := agent.NewOrchestrator(agent.OrchestratorConfig{
		Locks:         agent.NewTurnLocks(),
		Store:         conversations,
		Config:        resolver,
		Builtins:      tools.Builtins(),
		GlobalFilter:  resolver.GlobalFilter(),
		Bridge:        bridge,
		FrontendTools: frontendDefs,
		Pipeline:      buildPipeline(cfg.Turn),
		MaxRounds:     cfg.Turn.MaxRounds,
		TrimKeepLast:  cfg.Turn.TrimKeepLast,
		Executor: tools.ExecutorConfig{
			MaxConcurrency: cfg.Tools.MaxConcurrency,
			CallTimeout:    cfg.Tools.CallTimeout,
		},
		Pricing: cfg.Pricing,
		Metrics: observability.NewMetrics(),
		Tracer:  tracer,
		Logger:  slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	ws := gateway.NewServer(orchestrator, bridge, slog.Default())
	mux := http.NewServeMux()
	mux.Handle("/ws", ws.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("agentd started",
		"ws_addr", server.Addr+"/ws",
		"metrics_addr", metricsServer.Addr,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	slog.Info("shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	_ = metricsServer.Shutdown(shutdownCtx)

	slog.Info("agentd stopped")
	return nil
}

// buildStore opens the configured conversation store.
func buildStore(cfg config.StoreConfig) (agent.ConversationStore, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemory(), func() {}, nil
	case "sqlite":
		s, err := store.NewSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// buildPipeline assembles the compaction pipeline from config.
func buildPipeline(cfg config.TurnConfig) *compaction.Pipeline {
	return compaction.NewPipeline(slog.Default(), compaction.NewToolPrunePass(compaction.ToolPruneConfig{
		ActivationThreshold: cfg.CompactionThreshold,
		ProtectedUserTurns:  cfg.ProtectedUserTurns,
	}))
}
