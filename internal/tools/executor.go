package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// ExecutorConfig configures the concurrent tool executor.
type ExecutorConfig struct {
	// MaxConcurrency limits parallel tool executions. Default: 5.
	MaxConcurrency int

	// CallTimeout bounds each individual call. Default: 60s.
	CallTimeout time.Duration

	// Observe, if non-nil, is called once per completed call with its
	// outcome and wall time.
	Observe func(name string, isError bool, seconds float64)
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrency: 5,
		CallTimeout:    60 * time.Second,
	}
}

// Executor dispatches a round's server-recognized tool calls concurrently.
// Each call's failure — error return, timeout, or panic — is captured as that
// call's own error result and never aborts its siblings.
type Executor struct {
	registry *Registry
	config   ExecutorConfig
	sem      chan struct{}
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, config ExecutorConfig) *Executor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultExecutorConfig().MaxConcurrency
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultExecutorConfig().CallTimeout
	}
	return &Executor{
		registry: registry,
		config:   config,
		sem:      make(chan struct{}, config.MaxConcurrency),
	}
}

// ExecuteAll runs all calls concurrently (fan-out/fan-in) and returns results
// in input order. onResult, if non-nil, is invoked as each call completes, in
// completion order; results are matched to calls by id, not position.
func (e *Executor) ExecuteAll(ctx context.Context, calls []models.ToolCall, onResult func(models.ToolResult)) []models.ToolResult {
	if len(calls) == 0 {
		return nil
	}

	results := make([]models.ToolResult, len(calls))
	var emitMu sync.Mutex
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc models.ToolCall) {
			defer wg.Done()
			started := time.Now()
			res := e.executeOne(ctx, tc)
			results[idx] = res
			if e.config.Observe != nil {
				e.config.Observe(tc.Name, res.IsError, time.Since(started).Seconds())
			}
			if onResult != nil {
				emitMu.Lock()
				onResult(res)
				emitMu.Unlock()
			}
		}(i, call)
	}

	wg.Wait()
	return results
}

// executeOne runs one call with semaphore backpressure, a per-call timeout,
// and panic capture.
func (e *Executor) executeOne(ctx context.Context, call models.ToolCall) models.ToolResult {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return models.ToolResult{
			ToolCallID: call.ID,
			Content:    "tool execution canceled: " + ctx.Err().Error(),
			IsError:    true,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	done := make(chan models.ToolResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.ToolResult{
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("tool panicked: %v\n%s", r, debug.Stack()),
					IsError:    true,
				}
			}
		}()
		done <- e.registry.Execute(callCtx, call.Name, call.ID, call.Args)
	}()

	select {
	case res := <-done:
		return res
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return models.ToolResult{
				ToolCallID: call.ID,
				Content:    "tool execution canceled: " + ctx.Err().Error(),
				IsError:    true,
			}
		}
		return models.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("tool execution timed out after %s", e.config.CallTimeout),
			IsError:    true,
		}
	}
}
