// Package config loads the daemon's YAML configuration and resolves
// effective per-turn settings from it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imdanibytes/nexus-agent-sub000/internal/agent"
	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// Config is the daemon's top level configuration.
type Config struct {
	Server        ServerConfig                  `yaml:"server"`
	Logging       LoggingConfig                 `yaml:"logging"`
	Store         StoreConfig                   `yaml:"store"`
	Providers     map[string]ProviderConfig     `yaml:"providers"`
	Agents        map[string]AgentConfig        `yaml:"agents"`
	ActiveAgent   string                        `yaml:"active_agent"`
	Defaults      AgentConfig                   `yaml:"defaults"`
	Tools         ToolsConfig                   `yaml:"tools"`
	Turn          TurnConfig                    `yaml:"turn"`
	Observability ObservabilityConfig           `yaml:"observability"`
	Pricing       map[string]agent.ModelPricing `yaml:"pricing"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	// Driver selects the conversation store: "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the sqlite database file.
	Path string `yaml:"path"`
}

type ProviderConfig struct {
	// Type selects the adapter: "anthropic" or "openai".
	Type         string `yaml:"type"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// AgentConfig is one agent's settings. Zero fields inherit from Defaults.
type AgentConfig struct {
	Provider     string       `yaml:"provider"`
	Model        string       `yaml:"model"`
	MaxTokens    int          `yaml:"max_tokens"`
	Temperature  *float64     `yaml:"temperature"`
	TopP         *float64     `yaml:"top_p"`
	SystemPrompt string       `yaml:"system_prompt"`
	Tools        FilterConfig `yaml:"tools"`
}

// FilterConfig is an allow or deny list of tool name glob patterns.
type FilterConfig struct {
	Mode     string   `yaml:"mode"`
	Patterns []string `yaml:"patterns"`
}

type ToolsConfig struct {
	// Filter applies globally, before any per-agent filter.
	Filter FilterConfig `yaml:"filter"`

	// Frontend declares tools the connected client executes. They join the
	// advertised set; calls to them suspend on the bridge until the client
	// resolves them.
	Frontend []FrontendToolConfig `yaml:"frontend"`

	// BridgeTimeout bounds frontend tool resolution waits.
	BridgeTimeout time.Duration `yaml:"bridge_timeout"`

	// MaxConcurrency and CallTimeout configure the tool executor.
	MaxConcurrency int           `yaml:"max_concurrency"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
}

// FrontendToolConfig describes one client-executed tool. The schema is plain
// YAML and is re-encoded to JSON when the tool is advertised.
type FrontendToolConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Schema      map[string]any `yaml:"schema"`
}

type TurnConfig struct {
	// MaxRounds bounds rounds per turn.
	MaxRounds int `yaml:"max_rounds"`

	// TrimKeepLast is the bounded-window trim size between rounds.
	TrimKeepLast int `yaml:"trim_keep_last"`

	// ProtectedUserTurns is the compaction protected window.
	ProtectedUserTurns int `yaml:"protected_user_turns"`

	// CompactionThreshold is the tool-prune pass activation pressure.
	CompactionThreshold float64 `yaml:"compaction_threshold"`
}

type ObservabilityConfig struct {
	// OTLPEndpoint enables tracing when set.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// SamplingRate is the trace sampling fraction.
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Load reads and validates the config file. Environment references like
// ${ANTHROPIC_API_KEY} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			MetricsPort: 9090,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Store:   StoreConfig{Driver: "memory"},
		Tools: ToolsConfig{
			BridgeTimeout:  30 * time.Second,
			MaxConcurrency: 5,
			CallTimeout:    60 * time.Second,
		},
		Turn: TurnConfig{
			MaxRounds:           10,
			TrimKeepLast:        6,
			ProtectedUserTurns:  4,
			CompactionThreshold: 0.7,
		},
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	for name, p := range c.Providers {
		switch p.Type {
		case "anthropic", "openai":
		default:
			return fmt.Errorf("provider %q: unknown type %q", name, p.Type)
		}
	}
	for id, a := range c.Agents {
		if a.Provider != "" {
			if _, ok := c.Providers[a.Provider]; !ok {
				return fmt.Errorf("agent %q references unknown provider %q", id, a.Provider)
			}
		}
		if err := validateFilter(a.Tools); err != nil {
			return fmt.Errorf("agent %q: %w", id, err)
		}
	}
	if c.ActiveAgent != "" {
		if _, ok := c.Agents[c.ActiveAgent]; !ok {
			return fmt.Errorf("active_agent %q is not defined", c.ActiveAgent)
		}
	}
	if err := validateFilter(c.Tools.Filter); err != nil {
		return fmt.Errorf("tools.filter: %w", err)
	}
	for i, ft := range c.Tools.Frontend {
		if ft.Name == "" {
			return fmt.Errorf("tools.frontend[%d]: name is required", i)
		}
	}
	switch c.Store.Driver {
	case "", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// FrontendToolDefinitions converts the configured frontend tools into wire
// definitions. A missing schema becomes the empty object schema.
func (c *Config) FrontendToolDefinitions() ([]models.ToolDefinition, error) {
	defs := make([]models.ToolDefinition, 0, len(c.Tools.Frontend))
	for _, ft := range c.Tools.Frontend {
		schema := ft.Schema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("tools.frontend %q: encode schema: %w", ft.Name, err)
		}
		defs = append(defs, models.ToolDefinition{
			Name:        ft.Name,
			Description: ft.Description,
			InputSchema: raw,
		})
	}
	return defs, nil
}

func validateFilter(f FilterConfig) error {
	switch f.Mode {
	case "", "allow", "deny":
		return nil
	default:
		return fmt.Errorf("unknown filter mode %q", f.Mode)
	}
}
