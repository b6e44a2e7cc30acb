package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// Tool parameter limits to prevent resource exhaustion.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolArgsSize is the maximum size of tool argument JSON (10MB).
	MaxToolArgsSize = 10 << 20
)

// Config assembles one turn's registry.
type Config struct {
	// Builtins are the server's compiled-in tools.
	Builtins []Tool

	// Catalog supplies remote tool definitions. A failing catalog degrades
	// to a registry without remote tools; it never fails the turn.
	Catalog Catalog

	// ClientTools are definitions declared by the client for this turn
	// only. They are advertised to the model but never executed here.
	ClientTools []models.ToolDefinition

	// GlobalFilter and AgentFilter each restrict the advertised tool set;
	// when both are present they apply with AND semantics.
	GlobalFilter *Filter
	AgentFilter  *Filter

	Logger *slog.Logger
}

// Registry holds one turn's aggregated tool set. It is rebuilt fresh per
// turn and never shared mutably across turns, so no locking is needed.
type Registry struct {
	tools map[string]Tool // canonical name -> executable

	defs []models.ToolDefinition // wire-safe definitions, advertise order

	wireToCanonical map[string]string
	canonicalToWire map[string]string

	validators map[string]*jsonschema.Schema

	logger *slog.Logger
}

// Build aggregates built-in, remote, and client-declared tools, applies the
// filters, and sanitizes names. It fails only on an alias collision, which
// would break the bijective wire-name mapping.
func Build(ctx context.Context, cfg Config) (*Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		tools:           make(map[string]Tool),
		wireToCanonical: make(map[string]string),
		canonicalToWire: make(map[string]string),
		validators:      make(map[string]*jsonschema.Schema),
		logger:          logger,
	}

	filters := []*Filter{cfg.GlobalFilter, cfg.AgentFilter}

	for _, t := range cfg.Builtins {
		if !permitted(t.Name(), filters) {
			continue
		}
		if err := r.register(t, models.ToolSourceBuiltin); err != nil {
			return nil, err
		}
	}

	if cfg.Catalog != nil {
		remote, err := cfg.Catalog.List(ctx)
		if err != nil {
			logger.Warn("remote tool catalog unavailable, continuing without it", "error", err)
		}
		for _, def := range remote {
			if !permitted(def.Name, filters) {
				continue
			}
			if err := r.register(&remoteTool{def: def, catalog: cfg.Catalog}, models.ToolSourceRemote); err != nil {
				return nil, err
			}
		}
	}

	for _, def := range cfg.ClientTools {
		if !permitted(def.Name, filters) {
			continue
		}
		if err := r.declare(def, models.ToolSourceClient); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// register adds an executable tool and its wire-safe definition.
func (r *Registry) register(t Tool, source models.ToolSource) error {
	def := Definition(t, source)
	if err := r.declare(def, source); err != nil {
		return err
	}
	r.tools[t.Name()] = t

	if len(def.InputSchema) > 0 {
		schema, err := jsonschema.CompileString(def.Name+".schema.json", string(def.InputSchema))
		if err != nil {
			// Tools with uncompilable schemas still run, just unvalidated.
			r.logger.Warn("tool schema does not compile, skipping validation", "tool", def.Name, "error", err)
		} else {
			r.validators[def.Name] = schema
		}
	}
	return nil
}

// declare records a definition and its name alias without making it
// executable.
func (r *Registry) declare(def models.ToolDefinition, source models.ToolSource) error {
	if len(def.Name) > MaxToolNameLength {
		return fmt.Errorf("tool name exceeds maximum length of %d characters", MaxToolNameLength)
	}
	wire := SanitizeName(def.Name)
	if existing, ok := r.wireToCanonical[wire]; ok {
		return fmt.Errorf("tool alias collision: %q and %q both map to %q", existing, def.Name, wire)
	}
	r.wireToCanonical[wire] = def.Name
	r.canonicalToWire[def.Name] = wire

	wireDef := def
	wireDef.Name = wire
	wireDef.Source = source
	r.defs = append(r.defs, wireDef)
	return nil
}

// SanitizeName converts a canonical tool name into a wire-safe alias. The
// upstream inference API restricts tool names to an identifier character set,
// so dots become double underscores.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, ".", "__")
}

// WireDefinitions returns the advertised tool set with wire-safe names, in
// registration order.
func (r *Registry) WireDefinitions() []models.ToolDefinition {
	return r.defs
}

// CanonicalName translates a wire name back to its canonical form. Unknown
// names are returned unchanged with ok=false.
func (r *Registry) CanonicalName(wire string) (string, bool) {
	if canonical, ok := r.wireToCanonical[wire]; ok {
		return canonical, true
	}
	return wire, false
}

// WireName translates a canonical name to its wire alias.
func (r *Registry) WireName(canonical string) (string, bool) {
	wire, ok := r.canonicalToWire[canonical]
	return wire, ok
}

// Has reports whether the canonical name is executable server-side. Client-
// declared tools are advertised but not executable, so Has returns false for
// them; the round executor uses that to partition calls.
func (r *Registry) Has(canonical string) bool {
	_, ok := r.tools[canonical]
	return ok
}

// Execute runs the named tool. Failures of any kind are folded into the
// returned result's error flag; the error return is reserved for use by the
// executor's panic handling and is currently always nil.
func (r *Registry) Execute(ctx context.Context, canonical, callID string, args json.RawMessage) models.ToolResult {
	if len(args) > MaxToolArgsSize {
		return models.ToolResult{
			ToolCallID: callID,
			Content:    fmt.Sprintf("tool arguments exceed maximum size of %d bytes", MaxToolArgsSize),
			IsError:    true,
		}
	}

	tool, ok := r.tools[canonical]
	if !ok {
		return models.ToolResult{
			ToolCallID: callID,
			Content:    "tool not found: " + canonical,
			IsError:    true,
		}
	}

	if schema, ok := r.validators[canonical]; ok {
		var decoded any
		if err := json.Unmarshal(normalizeArgs(args), &decoded); err == nil {
			if err := schema.Validate(decoded); err != nil {
				return models.ToolResult{
					ToolCallID: callID,
					Content:    fmt.Sprintf("invalid arguments for %s: %v", canonical, err),
					IsError:    true,
				}
			}
		}
	}

	res, err := tool.Execute(ctx, callID, normalizeArgs(args))
	if err != nil {
		return models.ToolResult{ToolCallID: callID, Content: err.Error(), IsError: true}
	}
	if res == nil {
		return models.ToolResult{ToolCallID: callID, Content: "tool returned no result", IsError: true}
	}
	return models.ToolResult{ToolCallID: callID, Content: res.Content, IsError: res.IsError}
}

// normalizeArgs guarantees valid JSON for downstream consumers. Empty or
// malformed argument text degrades to an empty object.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return json.RawMessage(`{}`)
	}
	return args
}

// ParseArgs parses buffered tool-argument text into a JSON object, degrading
// malformed input to an empty object rather than failing the call.
func ParseArgs(buffered string) json.RawMessage {
	trimmed := strings.TrimSpace(buffered)
	if trimmed == "" {
		return json.RawMessage(`{}`)
	}
	raw := json.RawMessage(trimmed)
	if !json.Valid(raw) {
		return json.RawMessage(`{}`)
	}
	return raw
}
