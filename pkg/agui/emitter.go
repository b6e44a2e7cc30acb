package agui

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// Emitter generates protocol events with monotonic sequencing and dispatches
// them to a sink. One emitter serves exactly one run.
type Emitter struct {
	conversationID string
	runID          string
	sequence       uint64

	step int

	sink EventSink
}

// NewEmitter creates an emitter for a run. A nil sink discards events.
func NewEmitter(conversationID, runID string, sink EventSink) *Emitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &Emitter{
		conversationID: conversationID,
		runID:          runID,
		sink:           sink,
	}
}

// SetStep updates the current round index attached to nested events.
func (e *Emitter) SetStep(step int) { e.step = step }

func (e *Emitter) nextSeq() uint64 {
	return atomic.AddUint64(&e.sequence, 1)
}

func (e *Emitter) base(t EventType) Event {
	return Event{
		Type:           t,
		ConversationID: e.conversationID,
		RunID:          e.runID,
		Sequence:       e.nextSeq(),
		Time:           time.Now(),
		Step:           e.step,
	}
}

func (e *Emitter) emit(ctx context.Context, ev Event) {
	e.sink.Emit(ctx, ev)
}

// RunStarted emits RUN_STARTED.
func (e *Emitter) RunStarted(ctx context.Context) {
	ev := e.base(EventRunStarted)
	ev.Step = 0
	e.emit(ctx, ev)
}

// RunFinished emits RUN_FINISHED, with the pending hand-off payload if any.
func (e *Emitter) RunFinished(ctx context.Context, pending *PendingPayload) {
	ev := e.base(EventRunFinished)
	ev.Step = 0
	ev.Pending = pending
	e.emit(ctx, ev)
}

// RunError emits the terminal RUN_ERROR event.
func (e *Emitter) RunError(ctx context.Context, err error) {
	ev := e.base(EventRunError)
	ev.Step = 0
	if err != nil {
		ev.Error = err.Error()
	}
	e.emit(ctx, ev)
}

// StepStarted emits STEP_STARTED for the given round and makes it current.
func (e *Emitter) StepStarted(ctx context.Context, step int) {
	e.step = step
	e.emit(ctx, e.base(EventStepStarted))
}

// StepFinished emits STEP_FINISHED for the current round.
func (e *Emitter) StepFinished(ctx context.Context) {
	e.emit(ctx, e.base(EventStepFinished))
}

// TextMessageStart emits TEXT_MESSAGE_START for a new assistant message.
func (e *Emitter) TextMessageStart(ctx context.Context, messageID string) {
	ev := e.base(EventTextMessageStart)
	ev.MessageID = messageID
	e.emit(ctx, ev)
}

// TextMessageContent emits one text delta.
func (e *Emitter) TextMessageContent(ctx context.Context, messageID, delta string) {
	ev := e.base(EventTextMessageContent)
	ev.MessageID = messageID
	ev.Delta = delta
	e.emit(ctx, ev)
}

// TextMessageEnd closes the open text message.
func (e *Emitter) TextMessageEnd(ctx context.Context, messageID string) {
	ev := e.base(EventTextMessageEnd)
	ev.MessageID = messageID
	e.emit(ctx, ev)
}

// ToolCallStart emits TOOL_CALL_START. Name is the canonical tool name, not
// the wire-safe alias.
func (e *Emitter) ToolCallStart(ctx context.Context, callID, name string) {
	ev := e.base(EventToolCallStart)
	ev.ToolCallID = callID
	ev.ToolCallName = name
	e.emit(ctx, ev)
}

// ToolCallArgs emits one argument-text delta for an open tool call.
func (e *Emitter) ToolCallArgs(ctx context.Context, callID, delta string) {
	ev := e.base(EventToolCallArgs)
	ev.ToolCallID = callID
	ev.ArgsDelta = delta
	e.emit(ctx, ev)
}

// ToolCallEnd emits TOOL_CALL_END for a completed tool-call block.
func (e *Emitter) ToolCallEnd(ctx context.Context, callID string) {
	ev := e.base(EventToolCallEnd)
	ev.ToolCallID = callID
	e.emit(ctx, ev)
}

// ToolCallResult emits TOOL_CALL_RESULT once the call has been executed.
func (e *Emitter) ToolCallResult(ctx context.Context, result models.ToolResult) {
	ev := e.base(EventToolCallResult)
	ev.ToolCallID = result.ToolCallID
	ev.Result = &result
	e.emit(ctx, ev)
}

// Custom emits a named out-of-grammar event. Marshal failures drop the event
// rather than fail the turn.
func (e *Emitter) Custom(ctx context.Context, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ev := e.base(EventCustom)
	ev.Name = name
	ev.Payload = data
	e.emit(ctx, ev)
}
