// Package agent implements the turn orchestration core: the per-conversation
// turn lifecycle, the single-round execution state machine, and the glue
// between tool execution, compaction, and the event protocol.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imdanibytes/nexus-agent-sub000/internal/compaction"
	"github.com/imdanibytes/nexus-agent-sub000/internal/observability"
	"github.com/imdanibytes/nexus-agent-sub000/internal/tools"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/agui"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// ConversationStore is the durability boundary for conversation state. The
// orchestrator never assumes exclusive access; other surfaces may write
// concurrently.
type ConversationStore interface {
	// Get returns the conversation or nil when it does not exist yet.
	Get(ctx context.Context, id string) (*models.Conversation, error)
	Save(ctx context.Context, conv *models.Conversation) error
}

// RunSettings is the resolved effective configuration for one turn.
type RunSettings struct {
	// Client is the inference backend handle.
	Client StreamClient

	Model       string
	MaxTokens   int
	Temperature *float64
	TopP        *float64

	// ContextWindow is the model's window in tokens; zero falls back to
	// the compaction default.
	ContextWindow int64

	// SystemPrompt is the base system message before ancillary sections.
	SystemPrompt string

	// ToolFilter is the per-agent tool filter, nil for none.
	ToolFilter *tools.Filter
}

// ConfigResolver resolves effective settings with precedence: explicit agent
// id, then the process-wide active agent, then the built-in default.
type ConfigResolver interface {
	Resolve(agentID string) (*RunSettings, error)
}

// OrchestratorConfig assembles an orchestrator's collaborators.
type OrchestratorConfig struct {
	Locks  *TurnLocks
	Store  ConversationStore
	Config ConfigResolver

	Builtins     []tools.Tool
	Catalog      tools.Catalog
	GlobalFilter *tools.Filter

	// Bridge and FrontendTools declare host-configured tools whose
	// execution runs on the connected client. Each turn registers them
	// with a request hook that emits on that turn's emitter.
	Bridge        *tools.Bridge
	FrontendTools []models.ToolDefinition

	// Providers contribute ancillary system-message sections.
	Providers []ContextProvider

	// Pipeline runs once against the incoming messages before the round
	// loop. Nil gets the default pipeline.
	Pipeline *compaction.Pipeline

	// MaxRounds bounds rounds per turn. Default: 10.
	MaxRounds int

	// TrimKeepLast is the bounded-window trim size between rounds.
	TrimKeepLast int

	Executor tools.ExecutorConfig

	Pricing map[string]ModelPricing

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Logger  *slog.Logger
}

// Orchestrator owns per-conversation turn lifecycles.
type Orchestrator struct {
	cfg      OrchestratorConfig
	pipeline *compaction.Pipeline
	logger   *slog.Logger
}

// NewOrchestrator validates collaborators and builds the orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Locks == nil {
		return nil, fmt.Errorf("turn locks are required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if cfg.Config == nil {
		return nil, fmt.Errorf("config resolver is required")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 10
	}
	if cfg.TrimKeepLast <= 0 {
		cfg.TrimKeepLast = DefaultTrimKeepLast
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pipeline := cfg.Pipeline
	if pipeline == nil {
		pipeline = compaction.DefaultPipeline(logger)
	}
	return &Orchestrator{cfg: cfg, pipeline: pipeline, logger: logger}, nil
}

// TurnRequest is one caller-initiated exchange.
type TurnRequest struct {
	ConversationID string
	Messages       []models.WireMessage

	// Sink receives protocol events for the run's duration. A SinkCloser
	// is closed when the run terminates.
	Sink agui.EventSink

	// AgentID optionally selects an agent configuration.
	AgentID string

	// ClientTools are tool definitions declared by the caller for this
	// turn only; calls to them end the run as a pending hand-off.
	ClientTools []models.ToolDefinition
}

// TurnResult is handed back to the caller when the run terminates.
type TurnResult struct {
	RunID      string
	StopReason StopReason

	// Parts is the turn's accumulated output across all rounds.
	Parts []models.MessagePart

	// Pending and Resolved carry the client-tool hand-off payload, empty
	// for a fully server-side turn.
	Pending  []models.PendingToolCall
	Resolved []models.ToolResult

	Usage models.TokenUsage
	Cost  float64
}

// BeginTurn runs a complete turn. It fails synchronously with
// ErrTurnInProgress when the conversation already has one in flight, without
// touching any state. Every other outcome is reported on the sink as exactly
// one RUN_FINISHED or RUN_ERROR before the sink is closed.
func (o *Orchestrator) BeginTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}
	if !o.cfg.Locks.TryAcquire(req.ConversationID) {
		return nil, fmt.Errorf("%w: conversation %s", ErrTurnInProgress, req.ConversationID)
	}
	defer o.cfg.Locks.Release(req.ConversationID)

	runID := uuid.NewString()
	emitter := agui.NewEmitter(req.ConversationID, runID, req.Sink)
	defer func() {
		if closer, ok := req.Sink.(agui.SinkCloser); ok {
			_ = closer.Close()
		}
	}()

	// The turn's own cancellation signal. Canceled on every exit so any
	// frontend bridge waiters tied to this turn are released.
	tctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tctx, span := o.cfg.Tracer.StartTurn(tctx, req.ConversationID, runID)
	defer span.End()

	// RUN_STARTED goes out before any step that can fail so every stream,
	// including an immediate RUN_ERROR, opens on the grammar.
	emitter.RunStarted(ctx)

	started := time.Now()
	result, err := o.runTurn(tctx, req, runID, emitter)
	if err != nil {
		o.logger.Error("turn failed", "conversation_id", req.ConversationID, "run_id", runID, "error", err)
		emitter.RunError(ctx, err)
		o.cfg.Metrics.TurnFinished("error", time.Since(started).Seconds())
		return nil, err
	}

	var pendingPayload *agui.PendingPayload
	status := "finished"
	if len(result.Pending) > 0 {
		pendingPayload = &agui.PendingPayload{
			PendingToolCalls:    result.Pending,
			ResolvedToolResults: result.Resolved,
		}
		status = "pending_handoff"
	}
	emitter.RunFinished(ctx, pendingPayload)
	o.cfg.Metrics.TurnFinished(status, time.Since(started).Seconds())
	return result, nil
}

// runTurn is the locked body of a turn. The returned error becomes RUN_ERROR.
func (o *Orchestrator) runTurn(ctx context.Context, req TurnRequest, runID string, emitter *agui.Emitter) (*TurnResult, error) {
	settings, err := o.cfg.Config.Resolve(req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("resolve configuration: %w", err)
	}

	builtins := o.cfg.Builtins
	if o.cfg.Bridge != nil && len(o.cfg.FrontendTools) > 0 {
		builtins = append(builtins[:len(builtins):len(builtins)], o.frontendTools(emitter)...)
	}

	registry, err := tools.Build(ctx, tools.Config{
		Builtins:     builtins,
		Catalog:      o.cfg.Catalog,
		ClientTools:  req.ClientTools,
		GlobalFilter: o.cfg.GlobalFilter,
		AgentFilter:  settings.ToolFilter,
		Logger:       o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	conv, err := o.cfg.Store.Get(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	working := conv.Clone()
	if working == nil {
		working = &models.Conversation{ID: req.ConversationID, CreatedAt: time.Now()}
	}

	// Estimate current usage from the last known input tokens plus a
	// character heuristic over the newly supplied content, then compact.
	estimate := working.LastUsage.InputTokens + compaction.EstimateTokens(req.Messages)
	transcript, report := o.pipeline.Run(req.Messages, compaction.Budget{
		EstimatedUsage: estimate,
		ContextWindow:  settings.ContextWindow,
	})

	tree := NewSpanTree()
	rootSpan := tree.Begin("turn", "")

	if len(report.PassesRun) > 0 {
		emitter.Custom(ctx, "compaction_report", report)
		for _, e := range report.Entries {
			o.cfg.Metrics.CompactionApplied(e.Pass, 1)
		}
	}

	execCfg := o.cfg.Executor
	execCfg.Observe = o.cfg.Metrics.ToolExecuted
	runner := &roundRunner{
		client:   settings.Client,
		registry: registry,
		executor: tools.NewExecutor(registry, execCfg),
		emitter:  emitter,
		tree:     tree,
		logger:   o.logger,
	}
	system := NewSystemBuilder(settings.SystemPrompt, o.cfg.Providers, 0, o.logger)
	pricing := PricingFor(settings.Model, o.cfg.Pricing)

	result := &TurnResult{RunID: runID}

	for round := 1; round <= o.cfg.MaxRounds; round++ {
		completion := &CompletionRequest{
			Model:       settings.Model,
			System:      system.Build(ctx),
			Messages:    transcript,
			Tools:       registry.WireDefinitions(),
			MaxTokens:   settings.MaxTokens,
			Temperature: settings.Temperature,
			TopP:        settings.TopP,
		}

		rctx, roundSpan := o.cfg.Tracer.StartRound(ctx, round)
		rr, err := runner.Run(rctx, completion, round, rootSpan)
		roundSpan.End()
		if err != nil {
			o.finishConversation(ctx, working, result)
			return nil, err
		}

		o.cfg.Metrics.RoundFinished(string(rr.StopReason))
		result.Parts = append(result.Parts, rr.Parts...)
		result.StopReason = rr.StopReason

		if rr.Usage != nil {
			result.Usage.Add(*rr.Usage)
			roundCost := pricing.Estimate(*rr.Usage)
			result.Cost += roundCost

			working.LastUsage = *rr.Usage
			working.CumulativeUsage.Add(*rr.Usage)
			working.CumulativeCost += roundCost

			o.cfg.Metrics.Tokens(settings.Model, rr.Usage.InputTokens, rr.Usage.OutputTokens)
			emitter.Custom(ctx, "usage", agui.UsageSnapshot{
				Round:           round,
				Model:           settings.Model,
				RoundUsage:      *rr.Usage,
				CumulativeUsage: working.CumulativeUsage,
				CumulativeCost:  working.CumulativeCost,
			})
		}

		if !rr.Continues() {
			result.Pending = rr.Pending
			result.Resolved = rr.Resolved
			break
		}
		if round == o.cfg.MaxRounds {
			o.logger.Warn("turn reached the round budget, ending",
				"conversation_id", req.ConversationID, "rounds", round)
			break
		}

		transcript = append(transcript, rr.NewMessages...)
		transcript = trimToolResults(transcript, o.cfg.TrimKeepLast)
	}

	if working.Title == "" {
		working.Title = deriveTitle(req.Messages)
		if working.Title != "" {
			emitter.Custom(ctx, "title", agui.TitleUpdate{Title: working.Title})
		}
	}

	o.finishConversation(ctx, working, result)
	tree.End(rootSpan)
	emitter.Custom(ctx, "timing", tree.Snapshot())
	return result, nil
}

// frontendTools binds the host-configured client-executed tools to this
// turn's emitter. The request hook announces the call as a CUSTOM event; the
// client answers through the bridge.
func (o *Orchestrator) frontendTools(emitter *agui.Emitter) []tools.Tool {
	out := make([]tools.Tool, 0, len(o.cfg.FrontendTools))
	for _, def := range o.cfg.FrontendTools {
		out = append(out, tools.NewFrontendTool(def, o.cfg.Bridge, func(ctx context.Context, callID, name string, args json.RawMessage) {
			emitter.Custom(ctx, "frontend_tool_request", models.PendingToolCall{
				ID:   callID,
				Name: name,
				Args: args,
			})
		}))
	}
	return out
}

// finishConversation merges the turn's usage deltas onto the freshest stored
// copy rather than blindly overwriting, so concurrent edits from other
// surfaces survive. Store failures are logged, never surfaced.
func (o *Orchestrator) finishConversation(ctx context.Context, working *models.Conversation, result *TurnResult) {
	latest, err := o.cfg.Store.Get(ctx, working.ID)
	if err != nil {
		o.logger.Warn("reloading conversation for merge failed", "conversation_id", working.ID, "error", err)
	}
	merged := latest.Clone()
	if merged == nil {
		merged = &models.Conversation{ID: working.ID, CreatedAt: working.CreatedAt}
	}
	merged.LastUsage = working.LastUsage
	merged.CumulativeUsage.Add(result.Usage)
	merged.CumulativeCost += result.Cost
	if merged.Title == "" {
		merged.Title = working.Title
	}
	merged.UpdatedAt = time.Now()

	if err := o.cfg.Store.Save(ctx, merged); err != nil {
		o.logger.Warn("persisting conversation failed", "conversation_id", working.ID, "error", err)
	}
}

// deriveTitle builds an initial conversation title from the first user
// message.
func deriveTitle(messages []models.WireMessage) string {
	for _, msg := range messages {
		if msg.Role != models.RoleUser {
			continue
		}
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}
		if line := strings.SplitN(text, "\n", 2); len(line) > 0 {
			text = strings.TrimSpace(line[0])
		}
		const maxTitle = 60
		if len(text) > maxTitle {
			text = strings.TrimSpace(text[:maxTitle]) + "…"
		}
		return text
	}
	return ""
}
