package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// DefaultBridgeTimeout bounds how long a frontend tool call waits for the
// client to resolve it.
const DefaultBridgeTimeout = 30 * time.Second

type bridgeResolution struct {
	content string
	isError bool
}

// Bridge hands tool execution off to the connected client: Execute requests
// execution remotely, suspends on a single-resolution wait keyed by call id,
// and either receives Resolve from the client or synthesizes a timeout error.
//
// The bridge is per-process state passed through construction rather than a
// package global, so tests can build isolated instances.
type Bridge struct {
	mu      sync.Mutex
	pending map[string]chan bridgeResolution
	timeout time.Duration
}

// NewBridge creates a bridge. A non-positive timeout uses the default.
func NewBridge(timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultBridgeTimeout
	}
	return &Bridge{
		pending: make(map[string]chan bridgeResolution),
		timeout: timeout,
	}
}

// Resolve completes a suspended call. It returns false for an unknown or
// already-resolved call id; it never blocks and never panics.
func (b *Bridge) Resolve(callID, content string, isError bool) bool {
	b.mu.Lock()
	ch, ok := b.pending[callID]
	if ok {
		delete(b.pending, callID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	ch <- bridgeResolution{content: content, isError: isError}
	return true
}

// PendingCount returns the number of calls still awaiting resolution.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// register creates the single-resolution wait for a call id.
func (b *Bridge) register(callID string) chan bridgeResolution {
	ch := make(chan bridgeResolution, 1)
	b.mu.Lock()
	b.pending[callID] = ch
	b.mu.Unlock()
	return ch
}

// unregister removes a wait that will never be resolved.
func (b *Bridge) unregister(callID string) {
	b.mu.Lock()
	delete(b.pending, callID)
	b.mu.Unlock()
}

// await blocks on an already-registered wait until resolution, timeout, or
// context cancellation. The pending entry is always removed before returning.
func (b *Bridge) await(ctx context.Context, callID string, ch chan bridgeResolution) bridgeResolution {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res
	case <-timer.C:
		b.unregister(callID)
		return bridgeResolution{
			content: fmt.Sprintf("frontend tool call timed out after %s waiting for client resolution", b.timeout),
			isError: true,
		}
	case <-ctx.Done():
		b.unregister(callID)
		return bridgeResolution{
			content: "frontend tool call canceled: " + ctx.Err().Error(),
			isError: true,
		}
	}
}

// RequestFunc notifies the client that it must execute a tool call locally.
// Implementations typically emit a CUSTOM protocol event.
type RequestFunc func(ctx context.Context, callID, name string, args json.RawMessage)

// FrontendTool is a registered tool whose execution runs on the remote
// client. Its definition comes from the host; its Execute never runs local
// logic.
type FrontendTool struct {
	def     models.ToolDefinition
	bridge  *Bridge
	request RequestFunc
}

// NewFrontendTool wires a client-executed tool definition to the bridge.
func NewFrontendTool(def models.ToolDefinition, bridge *Bridge, request RequestFunc) *FrontendTool {
	return &FrontendTool{def: def, bridge: bridge, request: request}
}

func (t *FrontendTool) Name() string            { return t.def.Name }
func (t *FrontendTool) Description() string     { return t.def.Description }
func (t *FrontendTool) Schema() json.RawMessage { return t.def.InputSchema }

// Execute emits the execution request and suspends until the client resolves
// the call or the bridge timeout elapses. The wait is registered before the
// request goes out so a resolution arriving immediately still lands.
func (t *FrontendTool) Execute(ctx context.Context, callID string, args json.RawMessage) (*Result, error) {
	ch := t.bridge.register(callID)
	if t.request != nil {
		t.request(ctx, callID, t.def.Name, args)
	}
	res := t.bridge.await(ctx, callID, ch)
	return &Result{Content: res.content, IsError: res.isError}, nil
}
