package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestClockTool(t *testing.T) {
	tool := &clockTool{}
	if tool.Name() != "time.now" {
		t.Errorf("name = %q", tool.Name())
	}

	res, err := tool.Execute(context.Background(), "c1", json.RawMessage(`{}`))
	if err != nil || res.IsError {
		t.Fatalf("Execute: %v, %+v", err, res)
	}
	if _, perr := time.Parse(time.RFC3339, res.Content); perr != nil {
		t.Errorf("output %q is not RFC3339: %v", res.Content, perr)
	}

	res, err = tool.Execute(context.Background(), "c2", json.RawMessage(`{"timezone":"Mars/Olympus"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "unknown timezone") {
		t.Errorf("expected unknown timezone error, got %+v", res)
	}
}

func TestIDToolClampsCount(t *testing.T) {
	tool := &idTool{}

	res, err := tool.Execute(context.Background(), "c1", json.RawMessage(`{}`))
	if err != nil || res.IsError {
		t.Fatalf("Execute: %v, %+v", err, res)
	}
	if n := len(strings.Split(res.Content, "\n")); n != 1 {
		t.Errorf("default count produced %d ids", n)
	}

	res, _ = tool.Execute(context.Background(), "c2", json.RawMessage(`{"count":100}`))
	if n := len(strings.Split(res.Content, "\n")); n != 16 {
		t.Errorf("count should clamp to 16, got %d ids", n)
	}
}

func TestBuiltinSchemasAreValidJSON(t *testing.T) {
	for _, tool := range Builtins() {
		if !json.Valid(tool.Schema()) {
			t.Errorf("schema for %s is not valid JSON", tool.Name())
		}
	}
}
