package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

func TestBridgeResolveCompletesCall(t *testing.T) {
	bridge := NewBridge(time.Second)
	var requested string
	tool := NewFrontendTool(models.ToolDefinition{Name: "ui.confirm"}, bridge, func(ctx context.Context, callID, name string, args json.RawMessage) {
		requested = callID
		go func() {
			if !bridge.Resolve(callID, "confirmed", false) {
				t.Error("Resolve returned false for a pending call")
			}
		}()
	})

	res, err := tool.Execute(context.Background(), "call_1", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if requested != "call_1" {
		t.Errorf("request callback saw callID %q", requested)
	}
	if res.IsError || res.Content != "confirmed" {
		t.Errorf("result = %+v", res)
	}
	if n := bridge.PendingCount(); n != 0 {
		t.Errorf("pending count = %d after resolution", n)
	}
}

func TestBridgeResolveBeforeAwaitStillLands(t *testing.T) {
	bridge := NewBridge(50 * time.Millisecond)
	// Resolve synchronously from inside the request callback, before Execute
	// reaches its wait. The call must already be registered by then.
	tool := NewFrontendTool(models.ToolDefinition{Name: "ui.confirm"}, bridge, func(ctx context.Context, callID, name string, args json.RawMessage) {
		if !bridge.Resolve(callID, "instant", false) {
			t.Error("Resolve returned false before the wait started")
		}
	})

	res, err := tool.Execute(context.Background(), "call_1", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError || res.Content != "instant" {
		t.Errorf("result = %+v", res)
	}
}

func TestBridgeTimeoutSynthesizesErrorResult(t *testing.T) {
	bridge := NewBridge(20 * time.Millisecond)
	tool := NewFrontendTool(models.ToolDefinition{Name: "ui.prompt"}, bridge, nil)

	res, err := tool.Execute(context.Background(), "call_1", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "timed out") {
		t.Errorf("expected timeout error result, got %+v", res)
	}
	if n := bridge.PendingCount(); n != 0 {
		t.Errorf("timed-out call left in pending map, count = %d", n)
	}

	// A late resolution after timeout is a no-op.
	if bridge.Resolve("call_1", "too late", false) {
		t.Error("Resolve should return false after timeout")
	}
}

func TestBridgeResolveUnknownCallIsNoOp(t *testing.T) {
	bridge := NewBridge(time.Second)
	if bridge.Resolve("nonexistent", "x", false) {
		t.Error("Resolve should return false for an unknown call id")
	}
}

func TestBridgeDuplicateResolveReturnsFalse(t *testing.T) {
	bridge := NewBridge(time.Second)
	ch := bridge.register("call_1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		bridge.await(context.Background(), "call_1", ch)
	}()

	if !bridge.Resolve("call_1", "first", false) {
		t.Error("first Resolve should succeed")
	}
	if bridge.Resolve("call_1", "second", false) {
		t.Error("second Resolve should be a no-op")
	}
	<-done
}

func TestBridgeContextCancellationReleasesWaiter(t *testing.T) {
	bridge := NewBridge(10 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	tool := NewFrontendTool(models.ToolDefinition{Name: "ui.pick"}, bridge, nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	res, err := tool.Execute(ctx, "call_1", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "cancel") {
		t.Errorf("expected cancellation result, got %+v", res)
	}
	if n := bridge.PendingCount(); n != 0 {
		t.Errorf("canceled call left pending, count = %d", n)
	}
}
