package agent

import (
	"context"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// StopReason is the model's reason for ending a round.
type StopReason string

const (
	// StopEndTurn means the model finished its response.
	StopEndTurn StopReason = "end_turn"
	// StopToolUse means the model requested tool execution.
	StopToolUse StopReason = "tool_use"
	// StopAbort means the turn's cancellation signal fired.
	StopAbort StopReason = "abort"
	// StopError means the stream failed.
	StopError StopReason = "error"
)

// StreamEventKind discriminates the stream event union.
type StreamEventKind int

const (
	// StreamTextStart opens a new text block.
	StreamTextStart StreamEventKind = iota
	// StreamTextDelta appends to the open text block.
	StreamTextDelta
	// StreamToolStart opens a tool-use block. ToolCallID and ToolName
	// (the wire-safe alias) are set.
	StreamToolStart
	// StreamToolArgsDelta appends to the open tool-use block's argument
	// buffer.
	StreamToolArgsDelta
	// StreamBlockStop closes the currently open block.
	StreamBlockStop
	// StreamStop carries the model's stop reason. Last content-bearing
	// event of a healthy stream.
	StreamStop
	// StreamUsage carries final token counters. Providers that do not
	// report usage simply never send one.
	StreamUsage
	// StreamFailure terminates the stream with an error.
	StreamFailure
)

// StreamEvent is one item of an inference stream. Any backend can drive the
// round executor by producing this vocabulary.
type StreamEvent struct {
	Kind StreamEventKind

	// Text is the delta payload for StreamTextDelta.
	Text string

	// ToolCallID and ToolName identify a StreamToolStart block. ToolName
	// is the wire-safe alias the model saw.
	ToolCallID string
	ToolName   string

	// ArgsDelta is the partial argument JSON for StreamToolArgsDelta.
	ArgsDelta string

	// StopReason is set on StreamStop.
	StopReason StopReason

	// Usage is set on StreamUsage.
	Usage *models.TokenUsage

	// Err is set on StreamFailure.
	Err error
}

// CompletionRequest is one round's inference request.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []models.WireMessage

	// Tools carries wire-safe definitions from the registry.
	Tools []models.ToolDefinition

	MaxTokens   int
	Temperature *float64
	TopP        *float64
}

// StreamClient is the narrow contract an inference backend implements. The
// returned channel is closed when the stream ends; a StreamFailure event
// precedes close on error.
//
// Implementations must be safe for concurrent use across turns.
type StreamClient interface {
	Name() string
	Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error)
}
