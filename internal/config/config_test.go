package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-from-env")
	path := writeConfig(t, `
providers:
  anthropic:
    type: anthropic
    api_key: ${TEST_API_KEY}
    default_model: claude-sonnet-4-20250514
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers["anthropic"].APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.Providers["anthropic"].APIKey)
	}
	// Untouched sections keep the built-in defaults.
	if cfg.Turn.MaxRounds != 10 || cfg.Tools.BridgeTimeout != 30*time.Second {
		t.Errorf("defaults not applied: %+v / %+v", cfg.Turn, cfg.Tools)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d", cfg.Server.Port)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"unknown provider type": `
providers:
  p:
    type: azure
`,
		"agent references missing provider": `
agents:
  helper:
    provider: nowhere
`,
		"active agent undefined": `
active_agent: ghost
`,
		"sqlite without path": `
store:
  driver: sqlite
`,
		"bad filter mode": `
tools:
  filter:
    mode: block
    patterns: ["*"]
`,
		"frontend tool without a name": `
tools:
  frontend:
    - description: nameless
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestFrontendToolDefinitions(t *testing.T) {
	path := writeConfig(t, `
tools:
  frontend:
    - name: ui.confirm
      description: ask the user to confirm an action
      schema:
        type: object
        properties:
          question:
            type: string
    - name: ui.pick
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defs, err := cfg.FrontendToolDefinitions()
	if err != nil {
		t.Fatalf("FrontendToolDefinitions: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("defs = %d, want 2", len(defs))
	}
	if defs[0].Name != "ui.confirm" || defs[0].Description == "" {
		t.Errorf("first definition = %+v", defs[0])
	}
	var schema map[string]any
	if err := json.Unmarshal(defs[0].InputSchema, &schema); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("schema = %v", schema)
	}
	// A tool without a schema advertises the empty object schema.
	if string(defs[1].InputSchema) != `{"type":"object"}` {
		t.Errorf("default schema = %s", defs[1].InputSchema)
	}
}

func TestContextWindowFor(t *testing.T) {
	cases := []struct {
		model string
		want  int64
	}{
		{"claude-sonnet-4-20250514", 200_000},
		{"gpt-4o-2024-08-06", 128_000},
		{"gpt-4o-mini", 128_000},
		{"llama-3-local", 100_000},
	}
	for _, tc := range cases {
		if got := ContextWindowFor(tc.model); got != tc.want {
			t.Errorf("ContextWindowFor(%q) = %d, want %d", tc.model, got, tc.want)
		}
	}
}

func resolverFixture(t *testing.T) *Resolver {
	t.Helper()
	temp := 0.2
	cfg := Default()
	cfg.Providers = map[string]ProviderConfig{
		"anthropic": {Type: "anthropic", APIKey: "sk-a", DefaultModel: "claude-sonnet-4-20250514"},
		"openai":    {Type: "openai", APIKey: "sk-o", DefaultModel: "gpt-4o"},
	}
	cfg.Defaults = AgentConfig{Provider: "anthropic", SystemPrompt: "default prompt"}
	cfg.Agents = map[string]AgentConfig{
		"researcher": {
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   2048,
			Temperature: &temp,
			Tools:       FilterConfig{Mode: "allow", Patterns: []string{"web.*"}},
		},
		"writer": {SystemPrompt: "you write"},
	}
	cfg.ActiveAgent = "writer"
	r, err := NewResolver(cfg)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestResolveExplicitAgentWins(t *testing.T) {
	r := resolverFixture(t)
	s, err := r.Resolve("researcher")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Model != "gpt-4o-mini" || s.MaxTokens != 2048 {
		t.Errorf("settings = %+v", s)
	}
	if s.Client.Name() != "openai" {
		t.Errorf("client = %q", s.Client.Name())
	}
	if s.ContextWindow != 128_000 {
		t.Errorf("context window = %d", s.ContextWindow)
	}
	if s.ToolFilter == nil || len(s.ToolFilter.Patterns) != 1 {
		t.Errorf("tool filter = %+v", s.ToolFilter)
	}
	// Unset fields inherit from defaults.
	if s.SystemPrompt != "default prompt" {
		t.Errorf("system prompt = %q", s.SystemPrompt)
	}
}

func TestResolveFallsBackToActiveAgent(t *testing.T) {
	r := resolverFixture(t)
	s, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// "writer" inherits the default provider and its default model.
	if s.Client.Name() != "anthropic" {
		t.Errorf("client = %q", s.Client.Name())
	}
	if s.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", s.Model)
	}
	if s.SystemPrompt != "you write" {
		t.Errorf("system prompt = %q", s.SystemPrompt)
	}
	if s.MaxTokens != 4096 {
		t.Errorf("max tokens = %d, want fallback 4096", s.MaxTokens)
	}
}

func TestResolveUnknownAgent(t *testing.T) {
	r := resolverFixture(t)
	if _, err := r.Resolve("nobody"); err == nil {
		t.Error("expected an error for an unknown agent")
	}
}

func TestResolveSingleProviderIsImplicitDefault(t *testing.T) {
	cfg := Default()
	cfg.Providers = map[string]ProviderConfig{
		"only": {Type: "openai", APIKey: "sk", DefaultModel: "gpt-4o"},
	}
	r, err := NewResolver(cfg)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	s, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Client.Name() != "openai" || s.Model != "gpt-4o" {
		t.Errorf("settings = %+v", s)
	}
}
