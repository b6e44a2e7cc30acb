package config

import (
	"fmt"

	"github.com/imdanibytes/nexus-agent-sub000/internal/agent"
	"github.com/imdanibytes/nexus-agent-sub000/internal/agent/providers"
	"github.com/imdanibytes/nexus-agent-sub000/internal/tools"
)

// contextWindows maps model id prefixes to context window sizes in tokens.
var contextWindows = map[string]int64{
	"claude":      200_000,
	"gpt-4o":      128_000,
	"gpt-4o-mini": 128_000,
}

// ContextWindowFor resolves a model's context window by longest matching
// prefix, falling back to a conservative default.
func ContextWindowFor(model string) int64 {
	best := ""
	var window int64 = 100_000
	for prefix, w := range contextWindows {
		if len(prefix) > len(best) && len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			best = prefix
			window = w
		}
	}
	return window
}

// Resolver materializes effective turn settings from the loaded config. It
// constructs each provider's stream client once and reuses it across turns.
type Resolver struct {
	cfg     *Config
	clients map[string]agent.StreamClient
}

// NewResolver builds all configured provider clients up front so
// misconfiguration surfaces at startup, not mid-turn.
func NewResolver(cfg *Config) (*Resolver, error) {
	clients := make(map[string]agent.StreamClient, len(cfg.Providers))
	for name, p := range cfg.Providers {
		client, err := buildClient(p)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		clients[name] = client
	}
	return &Resolver{cfg: cfg, clients: clients}, nil
}

func buildClient(p ProviderConfig) (agent.StreamClient, error) {
	switch p.Type {
	case "anthropic":
		return providers.NewAnthropicClient(providers.AnthropicConfig{
			APIKey:       p.APIKey,
			BaseURL:      p.BaseURL,
			DefaultModel: p.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:       p.APIKey,
			BaseURL:      p.BaseURL,
			DefaultModel: p.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider type %q", p.Type)
	}
}

// Resolve returns the effective settings for a turn. Precedence: the
// explicit agent id, then the process-wide active agent, then the defaults.
func (r *Resolver) Resolve(agentID string) (*agent.RunSettings, error) {
	effective := r.cfg.Defaults

	id := agentID
	if id == "" {
		id = r.cfg.ActiveAgent
	}
	if id != "" {
		ac, ok := r.cfg.Agents[id]
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", id)
		}
		effective = merge(r.cfg.Defaults, ac)
	}

	providerName := effective.Provider
	if providerName == "" {
		// A single configured provider is an unambiguous default.
		if len(r.clients) != 1 {
			return nil, fmt.Errorf("no provider configured for agent %q", id)
		}
		for name := range r.clients {
			providerName = name
		}
	}
	client, ok := r.clients[providerName]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}

	model := effective.Model
	if model == "" {
		model = r.cfg.Providers[providerName].DefaultModel
	}
	maxTokens := effective.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &agent.RunSettings{
		Client:        client,
		Model:         model,
		MaxTokens:     maxTokens,
		Temperature:   effective.Temperature,
		TopP:          effective.TopP,
		ContextWindow: ContextWindowFor(model),
		SystemPrompt:  effective.SystemPrompt,
		ToolFilter:    buildFilter(effective.Tools),
	}, nil
}

// merge overlays explicit agent settings onto the defaults.
func merge(base, over AgentConfig) AgentConfig {
	out := base
	if over.Provider != "" {
		out.Provider = over.Provider
	}
	if over.Model != "" {
		out.Model = over.Model
	}
	if over.MaxTokens > 0 {
		out.MaxTokens = over.MaxTokens
	}
	if over.Temperature != nil {
		out.Temperature = over.Temperature
	}
	if over.TopP != nil {
		out.TopP = over.TopP
	}
	if over.SystemPrompt != "" {
		out.SystemPrompt = over.SystemPrompt
	}
	if over.Tools.Mode != "" || len(over.Tools.Patterns) > 0 {
		out.Tools = over.Tools
	}
	return out
}

func buildFilter(fc FilterConfig) *tools.Filter {
	if len(fc.Patterns) == 0 {
		return nil
	}
	mode := tools.FilterAllow
	if fc.Mode == "deny" {
		mode = tools.FilterDeny
	}
	return &tools.Filter{Mode: mode, Patterns: fc.Patterns}
}

// GlobalFilter builds the process-wide tool filter from config.
func (r *Resolver) GlobalFilter() *tools.Filter {
	return buildFilter(r.cfg.Tools.Filter)
}
