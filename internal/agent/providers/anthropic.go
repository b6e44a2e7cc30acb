// Package providers adapts inference backends to the agent.StreamClient
// contract. Each adapter translates its SDK's streaming event shape into the
// round executor's stream vocabulary.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/imdanibytes/nexus-agent-sub000/internal/agent"
	"github.com/imdanibytes/nexus-agent-sub000/internal/tools"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	// APIKey authenticates with the Anthropic API. Required.
	APIKey string

	// BaseURL overrides the API base URL, mainly for proxies and tests.
	BaseURL string

	// DefaultModel is used when a request does not name one.
	DefaultModel string
}

// AnthropicClient drives rounds against the Anthropic Messages API.
// Safe for concurrent use; each Stream call owns an independent SSE stream.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicClient validates the config and builds the adapter.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
	}, nil
}

func (c *AnthropicClient) Name() string { return "anthropic" }

// Stream opens a streaming completion and translates SSE events into the
// round executor's vocabulary. The returned channel closes when the stream
// ends; failures arrive as a StreamFailure event first.
func (c *AnthropicClient) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamEvent, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	events := make(chan agent.StreamEvent, 64)
	go func() {
		defer close(events)
		c.consume(ctx, params, events)
	}()
	return events, nil
}

func (c *AnthropicClient) buildParams(req *agent.CompletionRequest) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func (c *AnthropicClient) consume(ctx context.Context, params anthropic.MessageNewParams, out chan<- agent.StreamEvent) {
	stream := c.client.Messages.NewStreaming(ctx, params)

	var usage models.TokenUsage
	stopReason := agent.StopEndTurn

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			usage.InputTokens = start.Message.Usage.InputTokens

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "text":
				out <- agent.StreamEvent{Kind: agent.StreamTextStart}
			case "tool_use":
				toolUse := block.AsToolUse()
				out <- agent.StreamEvent{
					Kind:       agent.StreamToolStart,
					ToolCallID: toolUse.ID,
					ToolName:   toolUse.Name,
				}
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- agent.StreamEvent{Kind: agent.StreamTextDelta, Text: delta.Text}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					out <- agent.StreamEvent{Kind: agent.StreamToolArgsDelta, ArgsDelta: delta.PartialJSON}
				}
			}

		case "content_block_stop":
			out <- agent.StreamEvent{Kind: agent.StreamBlockStop}

		case "message_delta":
			delta := event.AsMessageDelta()
			if delta.Usage.OutputTokens > 0 {
				usage.OutputTokens = delta.Usage.OutputTokens
			}
			if delta.Delta.StopReason == "tool_use" {
				stopReason = agent.StopToolUse
			}

		case "message_stop":
			if usage.Total() > 0 {
				out <- agent.StreamEvent{Kind: agent.StreamUsage, Usage: &usage}
			}
			out <- agent.StreamEvent{Kind: agent.StreamStop, StopReason: stopReason}
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- agent.StreamEvent{Kind: agent.StreamFailure, Err: fmt.Errorf("anthropic: %w", err)}
	}
}

// convertMessages builds Anthropic content blocks from wire messages. Tool
// calls with arguments become tool_use blocks on assistant entries; tool
// calls carrying only results become tool_result blocks on user entries.
// Tool names are re-sanitized here so transcript entries always carry the
// same wire-safe alias the model was advertised.
func convertMessages(messages []models.WireMessage) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			if msg.Role == models.RoleAssistant {
				var input map[string]any
				if err := json.Unmarshal(tc.Args, &input); err != nil {
					return nil, fmt.Errorf("anthropic: invalid args for tool call %s: %w", tc.ID, err)
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tools.SanitizeName(tc.Name)))
			} else {
				content = append(content, anthropic.NewToolResultBlock(tc.ID, tc.Result, tc.IsError))
			}
		}
		if len(content) == 0 {
			continue
		}
		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(defs []models.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		raw := def.InputSchema
		if len(raw) == 0 {
			raw = json.RawMessage(`{"type":"object"}`)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid schema for tool %s: %w", def.Name, err)
		}
		tool := anthropic.ToolUnionParamOfTool(schema, def.Name)
		if tool.OfTool == nil {
			return nil, fmt.Errorf("anthropic: missing tool definition for %s", def.Name)
		}
		tool.OfTool.Description = anthropic.String(def.Description)
		result = append(result, tool)
	}
	return result, nil
}
