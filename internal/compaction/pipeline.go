// Package compaction shrinks an outgoing message list to fit a model's
// context budget. Passes run in order; each compares estimated pressure
// against its own activation threshold and, when exceeded, rewrites the
// working copy and records what it changed. Later passes observe earlier
// passes' output.
package compaction

import (
	"log/slog"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// CharsPerToken is the approximate character-to-token ratio used for
// estimation when the provider has not reported real usage.
const CharsPerToken = 4

// DefaultContextWindow is the fallback window size in tokens for models
// without a configured entry.
const DefaultContextWindow = 100000

// Action identifies what a pass did to a message.
type Action string

const (
	// ActionPruneToolResult marks a tool result whose text was replaced
	// with a placeholder.
	ActionPruneToolResult Action = "prune_tool_result"
)

// Entry records one edit made by a pass.
type Entry struct {
	Pass         string `json:"pass"`
	MessageIndex int    `json:"message_index"`
	ToolCallID   string `json:"tool_call_id,omitempty"`
	Action       Action `json:"action"`
	SizeBefore   int    `json:"size_before"`
	SizeAfter    int    `json:"size_after"`
}

// Report aggregates what the pipeline changed across all passes.
type Report struct {
	PassesRun            []string `json:"passes_run"`
	Entries              []Entry  `json:"entries,omitempty"`
	EstimatedTokensSaved int64    `json:"estimated_tokens_saved"`
}

// Budget carries the pressure inputs a pass gates on.
type Budget struct {
	// EstimatedUsage is the estimated prompt size in tokens.
	EstimatedUsage int64

	// ContextWindow is the model's context window in tokens.
	ContextWindow int64
}

// Pressure returns estimated usage as a fraction of the window.
func (b Budget) Pressure() float64 {
	window := b.ContextWindow
	if window <= 0 {
		window = DefaultContextWindow
	}
	return float64(b.EstimatedUsage) / float64(window)
}

// Pass is one threshold-gated transform. Apply must not mutate its input
// slice; it returns a rewritten copy (or the input unchanged) plus the edits
// it made.
type Pass interface {
	// Name identifies the pass in reports.
	Name() string

	// Threshold is the pressure above which the pass activates.
	Threshold() float64

	// Apply rewrites messages under budget pressure.
	Apply(messages []models.WireMessage, budget Budget) ([]models.WireMessage, []Entry)
}

// Pipeline composes passes by explicit iteration.
type Pipeline struct {
	passes []Pass
	logger *slog.Logger
}

// NewPipeline builds a pipeline over the given passes, run in order.
func NewPipeline(logger *slog.Logger, passes ...Pass) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{passes: passes, logger: logger}
}

// DefaultPipeline returns the standard pipeline: the tool-result pruning
// pass with its defaults.
func DefaultPipeline(logger *slog.Logger) *Pipeline {
	return NewPipeline(logger, NewToolPrunePass(ToolPruneConfig{}))
}

// Run executes every activated pass and returns the compacted messages with
// a report of all edits. Token savings from earlier passes reduce the
// pressure later passes observe.
func (p *Pipeline) Run(messages []models.WireMessage, budget Budget) ([]models.WireMessage, *Report) {
	report := &Report{}
	current := messages

	for _, pass := range p.passes {
		if budget.Pressure() < pass.Threshold() {
			continue
		}
		next, entries := pass.Apply(current, budget)
		report.PassesRun = append(report.PassesRun, pass.Name())

		var saved int64
		for _, e := range entries {
			saved += int64(e.SizeBefore-e.SizeAfter) / CharsPerToken
		}
		report.Entries = append(report.Entries, entries...)
		report.EstimatedTokensSaved += saved
		budget.EstimatedUsage -= saved
		if budget.EstimatedUsage < 0 {
			budget.EstimatedUsage = 0
		}

		if len(entries) > 0 {
			p.logger.Debug("compaction pass applied",
				"pass", pass.Name(),
				"edits", len(entries),
				"tokens_saved", saved)
		}
		current = next
	}
	return current, report
}

// EstimateMessageTokens estimates the token footprint of one message.
// Approximation: 4 characters per token, ceiling division.
func EstimateMessageTokens(msg models.WireMessage) int64 {
	chars := len(msg.Content)
	for _, tc := range msg.ToolCalls {
		chars += len(tc.Name) + len(tc.Args) + len(tc.Result)
	}
	return int64((chars + CharsPerToken - 1) / CharsPerToken)
}

// EstimateTokens estimates total tokens across a message list.
func EstimateTokens(messages []models.WireMessage) int64 {
	var total int64
	for _, msg := range messages {
		total += EstimateMessageTokens(msg)
	}
	return total
}
