package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

type staticProvider struct {
	name string
	text string
	err  error
	wait time.Duration
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) Context(ctx context.Context) (string, error) {
	if p.wait > 0 {
		select {
		case <-time.After(p.wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.text, p.err
}

func TestSystemBuilderJoinsSectionsInOrder(t *testing.T) {
	b := NewSystemBuilder("base prompt", []ContextProvider{
		&staticProvider{name: "a", text: "section a"},
		&staticProvider{name: "b", text: "section b"},
	}, 0, nil)

	got := b.Build(context.Background())
	want := "base prompt\n\nsection a\n\nsection b"
	if got != want {
		t.Errorf("system = %q, want %q", got, want)
	}
}

func TestSystemBuilderDropsFailingProvider(t *testing.T) {
	b := NewSystemBuilder("base", []ContextProvider{
		&staticProvider{name: "broken", err: errors.New("boom")},
		&staticProvider{name: "ok", text: "still here"},
	}, 0, nil)

	got := b.Build(context.Background())
	if got != "base\n\nstill here" {
		t.Errorf("system = %q", got)
	}
}

func TestSystemBuilderDropsSlowProvider(t *testing.T) {
	b := NewSystemBuilder("base", []ContextProvider{
		&staticProvider{name: "slow", text: "late", wait: 500 * time.Millisecond},
		&staticProvider{name: "fast", text: "on time"},
	}, 20*time.Millisecond, nil)

	start := time.Now()
	got := b.Build(context.Background())
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("build blocked for %v despite the per-provider timeout", elapsed)
	}
	if got != "base\n\non time" {
		t.Errorf("system = %q", got)
	}
}

func TestSystemBuilderNoProviders(t *testing.T) {
	b := NewSystemBuilder("just the base", nil, 0, nil)
	if got := b.Build(context.Background()); got != "just the base" {
		t.Errorf("system = %q", got)
	}
}
