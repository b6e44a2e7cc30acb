package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// reflectSchema derives a JSON Schema from an argument struct. Built-in
// tools use this so their schemas stay in sync with their argument types.
func reflectSchema(v any) json.RawMessage {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

// Builtins returns the server's compiled-in tool set. The dotted names
// exercise the registry's wire-name sanitization on every turn.
func Builtins() []Tool {
	return []Tool{
		&clockTool{},
		&idTool{},
	}
}

type clockArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name; defaults to UTC"`
}

// clockTool reports the current time. Registered as "time.now".
type clockTool struct{}

func (t *clockTool) Name() string        { return "time.now" }
func (t *clockTool) Description() string { return "Returns the current date and time." }

func (t *clockTool) Schema() json.RawMessage { return reflectSchema(&clockArgs{}) }

func (t *clockTool) Execute(ctx context.Context, callID string, args json.RawMessage) (*Result, error) {
	var parsed clockArgs
	_ = json.Unmarshal(args, &parsed)

	loc := time.UTC
	if parsed.Timezone != "" {
		resolved, err := time.LoadLocation(parsed.Timezone)
		if err != nil {
			return &Result{Content: "unknown timezone: " + parsed.Timezone, IsError: true}, nil
		}
		loc = resolved
	}
	return &Result{Content: time.Now().In(loc).Format(time.RFC3339)}, nil
}

type idArgs struct {
	Count int `json:"count,omitempty" jsonschema:"description=Number of identifiers to generate (1-16); defaults to 1"`
}

// idTool generates random identifiers. Registered as "id.generate".
type idTool struct{}

func (t *idTool) Name() string        { return "id.generate" }
func (t *idTool) Description() string { return "Generates random UUID identifiers." }

func (t *idTool) Schema() json.RawMessage { return reflectSchema(&idArgs{}) }

func (t *idTool) Execute(ctx context.Context, callID string, args json.RawMessage) (*Result, error) {
	var parsed idArgs
	_ = json.Unmarshal(args, &parsed)

	count := parsed.Count
	if count <= 0 {
		count = 1
	}
	if count > 16 {
		count = 16
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return &Result{Content: strings.Join(ids, "\n")}, nil
}
