package store

import (
	"context"
	"testing"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	got, err := s.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("Get(missing) = %v, %v; want nil, nil", got, err)
	}

	conv := &models.Conversation{
		ID:    "c1",
		Title: "hello",
		CumulativeUsage: models.TokenUsage{
			InputTokens:  100,
			OutputTokens: 50,
		},
		CumulativeCost: 0.01,
	}
	if err := s.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err = s.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "hello" || got.CumulativeUsage.Total() != 150 {
		t.Errorf("got %+v", got)
	}

	// The stored copy must be isolated from later caller mutation.
	conv.Title = "mutated"
	got, _ = s.Get(ctx, "c1")
	if got.Title != "hello" {
		t.Error("store returned a shared reference")
	}
}
