// Package agui defines the wire-level event protocol streamed from the turn
// orchestrator to connected clients, plus the sinks that carry it.
//
// The event grammar for one run is fixed:
//
//	RUN_STARTED
//	  ( STEP_STARTED
//	      { TEXT_MESSAGE_START TEXT_MESSAGE_CONTENT* TEXT_MESSAGE_END }*
//	      { TOOL_CALL_START TOOL_CALL_ARGS* TOOL_CALL_END TOOL_CALL_RESULT }*
//	    STEP_FINISHED )*
//	RUN_FINISHED | RUN_ERROR
//
// CUSTOM events (title updates, usage snapshots, timing trees, compaction
// reports, frontend tool execution requests) may appear anywhere after
// RUN_STARTED and before the terminal event; they are out of grammar but
// still addressed by run identifier.
package agui

import (
	"encoding/json"
	"time"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// EventType identifies a protocol event.
type EventType string

const (
	EventRunStarted  EventType = "RUN_STARTED"
	EventRunFinished EventType = "RUN_FINISHED"
	EventRunError    EventType = "RUN_ERROR"

	EventStepStarted  EventType = "STEP_STARTED"
	EventStepFinished EventType = "STEP_FINISHED"

	EventTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTextMessageEnd     EventType = "TEXT_MESSAGE_END"

	EventToolCallStart  EventType = "TOOL_CALL_START"
	EventToolCallArgs   EventType = "TOOL_CALL_ARGS"
	EventToolCallEnd    EventType = "TOOL_CALL_END"
	EventToolCallResult EventType = "TOOL_CALL_RESULT"

	EventCustom EventType = "CUSTOM"
)

// Terminal reports whether the event type ends a run.
func (t EventType) Terminal() bool {
	return t == EventRunFinished || t == EventRunError
}

// Event is a single protocol event. Every event carries the conversation and
// run identifiers so external subscribers can route it; Sequence is strictly
// increasing within a run.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	RunID          string    `json:"run_id"`
	Sequence       uint64    `json:"sequence"`
	Time           time.Time `json:"time"`

	// Step is the 1-based round index for STEP_* events and everything
	// nested inside a step.
	Step int `json:"step,omitempty"`

	// MessageID identifies the text message for TEXT_MESSAGE_* events.
	MessageID string `json:"message_id,omitempty"`
	// Delta is the text fragment for TEXT_MESSAGE_CONTENT.
	Delta string `json:"delta,omitempty"`

	// Tool call payloads.
	ToolCallID   string `json:"tool_call_id,omitempty"`
	ToolCallName string `json:"tool_call_name,omitempty"`
	ArgsDelta    string `json:"args_delta,omitempty"`

	// Result carries the tool outcome for TOOL_CALL_RESULT.
	Result *models.ToolResult `json:"result,omitempty"`

	// Pending carries unhandled client-tool calls and any server results
	// produced alongside them; set only on RUN_FINISHED.
	Pending *PendingPayload `json:"pending,omitempty"`

	// Error is the failure message for RUN_ERROR.
	Error string `json:"error,omitempty"`

	// Custom payload for CUSTOM events.
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PendingPayload is attached to RUN_FINISHED when a round produced tool calls
// the registry could not execute. ResolvedToolResults holds server-side
// results from the same round so no completed work is lost.
type PendingPayload struct {
	PendingToolCalls    []models.PendingToolCall `json:"pending_tool_calls"`
	ResolvedToolResults []models.ToolResult      `json:"resolved_tool_results,omitempty"`
}

// UsageSnapshot is the payload of the "usage" CUSTOM event emitted after each
// round that reports token usage.
type UsageSnapshot struct {
	Round           int               `json:"round"`
	Model           string            `json:"model"`
	RoundUsage      models.TokenUsage `json:"round_usage"`
	CumulativeUsage models.TokenUsage `json:"cumulative_usage"`
	CumulativeCost  float64           `json:"cumulative_cost_usd"`
}

// TitleUpdate is the payload of the "title" CUSTOM event.
type TitleUpdate struct {
	Title string `json:"title"`
}
