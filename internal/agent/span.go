package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Span is one node of a turn's timing tree: offsets are relative to the
// tree's start so the whole tree serializes compactly. Observability only;
// nothing consults spans for control decisions.
type Span struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	ParentID string           `json:"parent_id,omitempty"`
	StartMs  int64            `json:"start_ms"`
	EndMs    int64            `json:"end_ms,omitempty"`
	Markers  map[string]int64 `json:"markers,omitempty"`
	Meta     map[string]any   `json:"meta,omitempty"`
}

// SpanTree records hierarchical timings for a turn. Safe for concurrent
// use; tool goroutines may mark spans while the orchestrator opens new ones.
type SpanTree struct {
	mu    sync.Mutex
	start time.Time
	spans []*Span
}

// NewSpanTree starts a tree anchored at now.
func NewSpanTree() *SpanTree {
	return &SpanTree{start: time.Now()}
}

func (t *SpanTree) offset() int64 {
	return time.Since(t.start).Milliseconds()
}

// Begin opens a span under parentID (empty for a root span) and returns its
// id for End and Mark calls.
func (t *SpanTree) Begin(name, parentID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	span := &Span{
		ID:       uuid.NewString(),
		Name:     name,
		ParentID: parentID,
		StartMs:  t.offset(),
	}
	t.spans = append(t.spans, span)
	return span.ID
}

// End closes the span. Unknown ids are ignored.
func (t *SpanTree) End(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.spans {
		if s.ID == id {
			s.EndMs = t.offset()
			return
		}
	}
}

// Mark records a named point-in-time marker on the span, first write wins.
// Used for events like the round's first streamed token.
func (t *SpanTree) Mark(id, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.spans {
		if s.ID != id {
			continue
		}
		if s.Markers == nil {
			s.Markers = make(map[string]int64)
		}
		if _, exists := s.Markers[name]; !exists {
			s.Markers[name] = t.offset()
		}
		return
	}
}

// Snapshot returns a copy of all spans recorded so far.
func (t *SpanTree) Snapshot() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Span, len(t.spans))
	for i, s := range t.spans {
		out[i] = *s
	}
	return out
}
