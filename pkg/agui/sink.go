package agui

import (
	"context"
	"sync"
)

// EventSink receives protocol events during a run.
// Implementations must be safe to call from multiple goroutines and should
// be non-blocking or handle backpressure gracefully.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

// SinkCloser is implemented by sinks that hold resources. The orchestrator
// closes the sink when the run terminates.
type SinkCloser interface {
	EventSink
	Close() error
}

// ChanSink sends events to a channel. Terminal events block until delivered
// or the context is done; everything else is dropped when the channel is full
// rather than stalling the run.
type ChanSink struct {
	ch chan<- Event
}

// NewChanSink creates a sink backed by ch. The channel should be buffered.
func NewChanSink(ch chan<- Event) *ChanSink {
	return &ChanSink{ch: ch}
}

// Emit sends the event to the channel.
func (s *ChanSink) Emit(ctx context.Context, e Event) {
	select {
	case s.ch <- e:
		return
	default:
	}
	if e.Type.Terminal() {
		select {
		case s.ch <- e:
		case <-ctx.Done():
		}
		return
	}
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// CallbackSink wraps a function as an EventSink.
type CallbackSink struct {
	fn func(ctx context.Context, e Event)
}

// NewCallbackSink creates a sink that calls fn for each event.
func NewCallbackSink(fn func(ctx context.Context, e Event)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

// Emit calls the wrapped function.
func (s *CallbackSink) Emit(ctx context.Context, e Event) {
	if s.fn != nil {
		s.fn(ctx, e)
	}
}

// MultiSink fans out events to multiple sinks. Nil sinks are filtered.
type MultiSink struct {
	sinks []EventSink
}

// NewMultiSink creates a sink dispatching to all given sinks in order.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	filtered := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

// Emit dispatches the event to every sink.
func (s *MultiSink) Emit(ctx context.Context, e Event) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, e)
	}
}

// NopSink discards all events.
type NopSink struct{}

// Emit does nothing.
func (NopSink) Emit(ctx context.Context, e Event) {}

// CollectSink records every event in order. Test helper.
type CollectSink struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends the event.
func (s *CollectSink) Emit(ctx context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of the recorded events.
func (s *CollectSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Types returns the recorded event types in order.
func (s *CollectSink) Types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}
