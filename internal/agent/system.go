package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultProviderTimeout bounds each ancillary context provider.
const DefaultProviderTimeout = 2 * time.Second

// ContextProvider contributes an ancillary section to the system message,
// rebuilt fresh every round. A slow or failing provider is dropped for that
// round, never failing it.
type ContextProvider interface {
	Name() string
	Context(ctx context.Context) (string, error)
}

// SystemBuilder assembles the round's system message from a base prompt and
// the registered context providers.
type SystemBuilder struct {
	base      string
	providers []ContextProvider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSystemBuilder creates a builder. A non-positive timeout uses the
// default per-provider bound.
func NewSystemBuilder(base string, providers []ContextProvider, timeout time.Duration, logger *slog.Logger) *SystemBuilder {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemBuilder{base: base, providers: providers, timeout: timeout, logger: logger}
}

// Build runs all providers concurrently, each under its own timeout, and
// joins the surviving sections in registration order after the base prompt.
func (b *SystemBuilder) Build(ctx context.Context) string {
	if len(b.providers) == 0 {
		return b.base
	}

	sections := make([]string, len(b.providers))
	done := make(chan int, len(b.providers))

	for i, p := range b.providers {
		go func(idx int, provider ContextProvider) {
			defer func() { done <- idx }()
			pctx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			type outcome struct {
				text string
				err  error
			}
			result := make(chan outcome, 1)
			go func() {
				text, err := provider.Context(pctx)
				result <- outcome{text: text, err: err}
			}()

			select {
			case out := <-result:
				if out.err != nil {
					b.logger.Warn("system context provider failed, dropping section",
						"provider", provider.Name(), "error", out.err)
					return
				}
				sections[idx] = out.text
			case <-pctx.Done():
				b.logger.Warn("system context provider timed out, dropping section",
					"provider", provider.Name(), "timeout", b.timeout)
			}
		}(i, p)
	}
	for range b.providers {
		<-done
	}

	parts := make([]string, 0, len(sections)+1)
	if b.base != "" {
		parts = append(parts, b.base)
	}
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
