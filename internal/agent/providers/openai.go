package providers

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/imdanibytes/nexus-agent-sub000/internal/agent"
	"github.com/imdanibytes/nexus-agent-sub000/internal/tools"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	// APIKey authenticates with the OpenAI API. Required.
	APIKey string

	// BaseURL overrides the API base URL, covering Azure and compatible
	// gateways.
	BaseURL string

	// DefaultModel is used when a request does not name one.
	DefaultModel string
}

// OpenAIClient drives rounds against the chat completions API. OpenAI does
// not delimit content blocks, so the adapter synthesizes block boundaries:
// one text block per response, one tool block per distinct call index.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIClient validates the config and builds the adapter.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: model,
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

// Stream opens a streaming chat completion and adapts its deltas to the
// round executor's vocabulary.
func (c *OpenAIClient) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamEvent, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    c.model(req.Model),
		Messages: convertOpenAIMessages(req.Messages, req.System),
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		chatReq.TopP = float32(*req.TopP)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertOpenAITools(req.Tools)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	events := make(chan agent.StreamEvent, 64)
	go func() {
		defer close(events)
		defer stream.Close()
		consumeOpenAIStream(stream, events)
	}()
	return events, nil
}

func (c *OpenAIClient) model(requested string) string {
	if requested != "" {
		return requested
	}
	return c.defaultModel
}

func consumeOpenAIStream(stream *openai.ChatCompletionStream, out chan<- agent.StreamEvent) {
	var (
		textOpen   bool
		toolOpen   = -1
		sawTool    bool
		usage      *models.TokenUsage
		stopReason = agent.StopEndTurn
	)

	closeBlock := func() {
		if textOpen || toolOpen >= 0 {
			out <- agent.StreamEvent{Kind: agent.StreamBlockStop}
			textOpen = false
			toolOpen = -1
		}
	}

	for {
		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				closeBlock()
				if usage != nil {
					out <- agent.StreamEvent{Kind: agent.StreamUsage, Usage: usage}
				}
				if sawTool {
					stopReason = agent.StopToolUse
				}
				out <- agent.StreamEvent{Kind: agent.StreamStop, StopReason: stopReason}
				return
			}
			out <- agent.StreamEvent{Kind: agent.StreamFailure, Err: fmt.Errorf("openai: %w", err)}
			return
		}

		if response.Usage != nil {
			usage = &models.TokenUsage{
				InputTokens:  int64(response.Usage.PromptTokens),
				OutputTokens: int64(response.Usage.CompletionTokens),
			}
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if choice.Delta.Content != "" {
			if toolOpen >= 0 {
				closeBlock()
			}
			if !textOpen {
				textOpen = true
				out <- agent.StreamEvent{Kind: agent.StreamTextStart}
			}
			out <- agent.StreamEvent{Kind: agent.StreamTextDelta, Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if tc.ID != "" && index != toolOpen {
				closeBlock()
				toolOpen = index
				sawTool = true
				out <- agent.StreamEvent{
					Kind:       agent.StreamToolStart,
					ToolCallID: tc.ID,
					ToolName:   tc.Function.Name,
				}
			}
			if tc.Function.Arguments != "" {
				out <- agent.StreamEvent{Kind: agent.StreamToolArgsDelta, ArgsDelta: tc.Function.Arguments}
			}
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			stopReason = agent.StopToolUse
		}
	}
}

// convertOpenAIMessages maps wire messages to the chat format. The system
// prompt rides as the first message; tool result entries become one "tool"
// role message per result. Tool names are re-sanitized so transcript entries
// always carry the wire-safe alias the model was advertised.
func convertOpenAIMessages(messages []models.WireMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		if msg.Role == models.RoleAssistant {
			entry := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				entry.ToolCalls = append(entry.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tools.SanitizeName(tc.Name),
						Arguments: string(tc.Args),
					},
				})
			}
			result = append(result, entry)
			continue
		}

		resultsOnly := len(msg.ToolCalls) > 0 && msg.Content == ""
		if resultsOnly {
			for _, tc := range msg.ToolCalls {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tc.Result,
					ToolCallID: tc.ID,
				})
			}
			continue
		}
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Content,
		})
	}
	return result
}

func convertOpenAITools(defs []models.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.InputSchema,
			},
		})
	}
	return result
}
