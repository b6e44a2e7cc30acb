// Package models defines the shared data model for the turn orchestration
// core: wire messages exchanged with the client, transcript parts accumulated
// across a turn, tool definitions and call records, and conversation state.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolSource tags where a tool definition came from.
type ToolSource string

const (
	// ToolSourceBuiltin marks tools compiled into the server.
	ToolSourceBuiltin ToolSource = "builtin"
	// ToolSourceRemote marks tools fetched from the remote tool catalog.
	ToolSourceRemote ToolSource = "remote"
	// ToolSourceClient marks tools declared by the connected client for a
	// single turn. They are advertised to the model but never executed
	// server-side.
	ToolSourceClient ToolSource = "client"
)

// ToolDefinition describes a callable tool: its canonical name, a natural
// language description for the model, and a JSON-Schema input shape.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
	Source      ToolSource      `json:"source,omitempty"`
}

// ToolCall records a model-requested tool invocation and, once executed, its
// result. Args holds the parsed argument object; malformed argument JSON
// degrades to an empty object upstream, so Args is always valid JSON.
type ToolCall struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Args    json.RawMessage `json:"args,omitempty"`
	Result  string          `json:"result,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
}

// ToolResult is the outcome of executing a single tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// PendingToolCall is a tool call the registry does not recognize, deferred to
// the remote caller for local execution.
type PendingToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// WireMessage is the only input representation the core accepts for prompt
// construction: role, text content, and any tool calls with their results.
type WireMessage struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// PartKind discriminates the MessagePart union.
type PartKind string

const (
	PartText     PartKind = "text"
	PartToolCall PartKind = "tool_call"
)

// MessagePart is one element of a turn's accumulated output: either a text
// fragment or a resolved tool-call record. The orchestrator hands the
// collected parts back to the caller for persistence.
type MessagePart struct {
	Kind     PartKind  `json:"kind"`
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) MessagePart {
	return MessagePart{Kind: PartText, Text: text}
}

// ToolCallPart builds a tool-call part.
func ToolCallPart(tc ToolCall) MessagePart {
	return MessagePart{Kind: PartToolCall, ToolCall: &tc}
}

// TokenUsage holds token counters for one round or a running total.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int64 { return u.InputTokens + u.OutputTokens }

// Add accumulates another usage record into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Conversation is the orchestrator's working copy of persisted conversation
// state. The store owns durability; the orchestrator merges usage and cost
// onto the latest on-disk copy at turn end.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// LastUsage is the token usage reported by the most recent round, used
	// to seed the next turn's context budget estimate.
	LastUsage TokenUsage `json:"last_usage"`

	// Cumulative totals across the conversation's lifetime. Monotonically
	// non-decreasing across rounds of a turn.
	CumulativeUsage TokenUsage `json:"cumulative_usage"`
	CumulativeCost  float64    `json:"cumulative_cost_usd"`
}

// Clone returns a shallow copy safe for the orchestrator to mutate.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
