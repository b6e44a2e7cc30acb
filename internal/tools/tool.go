// Package tools provides the per-turn tool registry: aggregation of built-in,
// remote-catalog, and client-declared tool definitions, allow/deny filtering,
// wire-safe name sanitization, and concurrent execution.
package tools

import (
	"context"
	"encoding/json"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// Tool is an executable server-side tool.
type Tool interface {
	// Name returns the canonical tool name. Canonical names may contain
	// dots; the registry sanitizes them before they reach the model.
	Name() string

	// Description returns a natural language description for the model.
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage

	// Execute runs the tool. callID identifies the originating tool-use
	// block. Errors are folded into the call's own result by the executor
	// and never abort sibling calls.
	Execute(ctx context.Context, callID string, args json.RawMessage) (*Result, error)
}

// Result is the output of a tool execution before it is bound to a call id.
type Result struct {
	Content string
	IsError bool
}

// Definition builds the ToolDefinition for a registered tool.
func Definition(t Tool, source models.ToolSource) models.ToolDefinition {
	return models.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.Schema(),
		Source:      source,
	}
}

// Catalog is the remote tool catalog collaborator. The owner caches and
// invalidates the definition list on its own TTL; the registry just reads
// whatever is current at turn start and dispatches calls back through it.
type Catalog interface {
	List(ctx context.Context) ([]models.ToolDefinition, error)
	Call(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// remoteTool adapts one catalog entry to the Tool interface.
type remoteTool struct {
	def     models.ToolDefinition
	catalog Catalog
}

func (t *remoteTool) Name() string            { return t.def.Name }
func (t *remoteTool) Description() string     { return t.def.Description }
func (t *remoteTool) Schema() json.RawMessage { return t.def.InputSchema }

func (t *remoteTool) Execute(ctx context.Context, callID string, args json.RawMessage) (*Result, error) {
	content, err := t.catalog.Call(ctx, t.def.Name, args)
	if err != nil {
		return nil, err
	}
	return &Result{Content: content}, nil
}
