package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/imdanibytes/nexus-agent-sub000/internal/tools"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/agui"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// RoundResult is the outcome of one inference round.
type RoundResult struct {
	StopReason StopReason

	// Parts accumulates the round's output for the caller's persistence.
	Parts []models.MessagePart

	// NewMessages are follow-up transcript entries the orchestrator
	// appends before the next round: one assistant entry with the round's
	// text and tool-use blocks, one synthetic entry carrying all tool
	// results. Empty unless the round continues.
	NewMessages []models.WireMessage

	// Pending and Resolved carry the client hand-off payload when the
	// model called tools the registry cannot execute. Server results
	// produced in the same round ride along so no work is lost.
	Pending  []models.PendingToolCall
	Resolved []models.ToolResult

	// Usage is the provider-reported token usage, nil when the provider
	// omits it.
	Usage *models.TokenUsage
}

// Continues reports whether the orchestrator should run another round.
func (r *RoundResult) Continues() bool {
	return r.StopReason == StopToolUse && len(r.Pending) == 0
}

// roundRunner executes exactly one inference round: it consumes the
// completion stream as a state machine, translates stream items into
// protocol events, then partitions and dispatches the round's tool calls.
type roundRunner struct {
	client   StreamClient
	registry *tools.Registry
	executor *tools.Executor
	emitter  *agui.Emitter
	tree     *SpanTree
	logger   *slog.Logger
}

// openToolCall buffers one streaming tool-use block.
type openToolCall struct {
	id       string
	wireName string
	args     strings.Builder
}

// Run performs the round. step is the 1-based round index; spanParent is the
// turn's root span.
func (r *roundRunner) Run(ctx context.Context, req *CompletionRequest, step int, spanParent string) (*RoundResult, error) {
	if ctx.Err() != nil {
		return &RoundResult{StopReason: StopAbort}, nil
	}

	spanID := r.tree.Begin(fmt.Sprintf("round.%d", step), spanParent)
	defer r.tree.End(spanID)

	r.emitter.StepStarted(ctx, step)
	defer r.emitter.StepFinished(ctx)

	stream, err := r.client.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	var (
		parts      []models.MessagePart
		textBuf    strings.Builder
		messageID  string
		textOpen   bool
		firstText  = true
		firstToken = true
		calls      []*openToolCall
		current    *openToolCall
		stopReason = StopEndTurn
		usage      *models.TokenUsage
	)

	closeText := func() {
		if !textOpen {
			return
		}
		parts = append(parts, models.TextPart(textBuf.String()))
		textOpen = false
	}

	for ev := range stream {
		switch ev.Kind {
		case StreamTextStart:
			textBuf.Reset()
			textOpen = true
			if firstText {
				firstText = false
				messageID = uuid.NewString()
				r.emitter.TextMessageStart(ctx, messageID)
			}
		case StreamTextDelta:
			if firstToken {
				firstToken = false
				r.tree.Mark(spanID, "first_token")
			}
			textBuf.WriteString(ev.Text)
			r.emitter.TextMessageContent(ctx, messageID, ev.Text)
		case StreamToolStart:
			closeText()
			canonical, known := r.registry.CanonicalName(ev.ToolName)
			if !known {
				r.logger.Debug("model called a tool outside the advertised set", "tool", ev.ToolName)
			}
			current = &openToolCall{id: ev.ToolCallID, wireName: ev.ToolName}
			calls = append(calls, current)
			r.emitter.ToolCallStart(ctx, ev.ToolCallID, canonical)
		case StreamToolArgsDelta:
			if current != nil {
				current.args.WriteString(ev.ArgsDelta)
				r.emitter.ToolCallArgs(ctx, current.id, ev.ArgsDelta)
			}
		case StreamBlockStop:
			closeText()
			current = nil
		case StreamStop:
			stopReason = ev.StopReason
		case StreamUsage:
			usage = ev.Usage
		case StreamFailure:
			// An externally canceled stream is a clean abort, not a run
			// failure. The provider closes the channel after a failure
			// event, so the loop drains and ends the round normally.
			if errors.Is(ev.Err, context.Canceled) || errors.Is(ev.Err, context.DeadlineExceeded) {
				stopReason = StopAbort
				continue
			}
			return nil, fmt.Errorf("completion stream: %w", ev.Err)
		}
	}
	closeText()

	if messageID != "" {
		r.emitter.TextMessageEnd(ctx, messageID)
	}
	for _, call := range calls {
		r.emitter.ToolCallEnd(ctx, call.id)
	}

	if stopReason != StopToolUse || len(calls) == 0 {
		if ctx.Err() != nil {
			stopReason = StopAbort
		}
		return &RoundResult{StopReason: stopReason, Parts: parts, Usage: usage}, nil
	}

	return r.dispatch(ctx, parts, calls, usage)
}

// dispatch partitions the round's tool calls into server-executable and
// client-only, runs the server side concurrently, and shapes the result.
func (r *roundRunner) dispatch(ctx context.Context, parts []models.MessagePart, open []*openToolCall, usage *models.TokenUsage) (*RoundResult, error) {
	all := make([]models.ToolCall, 0, len(open))
	var server []models.ToolCall
	var pending []models.PendingToolCall

	for _, oc := range open {
		canonical, _ := r.registry.CanonicalName(oc.wireName)
		call := models.ToolCall{
			ID:   oc.id,
			Name: canonical,
			Args: tools.ParseArgs(oc.args.String()),
		}
		all = append(all, call)
		if r.registry.Has(canonical) {
			server = append(server, call)
		} else {
			pending = append(pending, models.PendingToolCall{ID: call.ID, Name: call.Name, Args: call.Args})
		}
	}

	results := r.executor.ExecuteAll(ctx, server, func(res models.ToolResult) {
		r.emitter.ToolCallResult(ctx, res)
	})

	byID := make(map[string]models.ToolResult, len(results))
	for _, res := range results {
		byID[res.ToolCallID] = res
	}
	for i := range all {
		if res, ok := byID[all[i].ID]; ok {
			all[i].Result = res.Content
			all[i].IsError = res.IsError
		}
	}
	for _, call := range all {
		parts = append(parts, models.ToolCallPart(call))
	}

	if len(pending) > 0 {
		return &RoundResult{
			StopReason: StopToolUse,
			Parts:      parts,
			Pending:    pending,
			Resolved:   results,
			Usage:      usage,
		}, nil
	}

	// The assistant entry repeats the calls without their results, so only
	// the synthetic result entry below counts toward the tool-result trim
	// window between rounds.
	assistant := models.WireMessage{Role: models.RoleAssistant}
	for _, call := range all {
		assistant.ToolCalls = append(assistant.ToolCalls, models.ToolCall{
			ID:   call.ID,
			Name: call.Name,
			Args: call.Args,
		})
	}
	for _, p := range parts {
		if p.Kind == models.PartText {
			assistant.Content += p.Text
		}
	}
	// The synthetic user entry carries only results; providers translate it
	// into their tool-result wire blocks.
	feedback := models.WireMessage{Role: models.RoleUser}
	for _, res := range results {
		feedback.ToolCalls = append(feedback.ToolCalls, models.ToolCall{
			ID:      res.ToolCallID,
			Result:  res.Content,
			IsError: res.IsError,
		})
	}

	return &RoundResult{
		StopReason:  StopToolUse,
		Parts:       parts,
		NewMessages: []models.WireMessage{assistant, feedback},
		Usage:       usage,
	}, nil
}
