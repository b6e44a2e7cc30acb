package compaction

import (
	"strings"
	"testing"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// historyWithToolResults builds a transcript of alternating user/assistant
// turns where every assistant turn carries one tool call with a fat result.
func historyWithToolResults(userTurns int) []models.WireMessage {
	var msgs []models.WireMessage
	for i := 0; i < userTurns; i++ {
		msgs = append(msgs, models.WireMessage{
			Role:    models.RoleUser,
			Content: "question " + strings.Repeat("x", 100),
		})
		msgs = append(msgs, models.WireMessage{
			Role:    models.RoleAssistant,
			Content: "answer",
			ToolCalls: []models.ToolCall{{
				ID:     "call_" + string(rune('a'+i)),
				Name:   "search.web",
				Result: strings.Repeat("result data ", 500),
			}},
		})
	}
	return msgs
}

func TestToolPruneProtectedWindowNeverTouched(t *testing.T) {
	msgs := historyWithToolResults(8)
	pass := NewToolPrunePass(ToolPruneConfig{ProtectedUserTurns: 4})

	// Extreme pressure must still not reach the protected window.
	out, entries := pass.Apply(msgs, Budget{EstimatedUsage: 10_000_000, ContextWindow: 1000})

	cutoff := protectedWindowStart(msgs, 4)
	if cutoff == 0 {
		t.Fatal("expected a nonzero protected window start")
	}
	for _, e := range entries {
		if e.MessageIndex >= cutoff {
			t.Errorf("edit at index %d is inside the protected window (cutoff %d)", e.MessageIndex, cutoff)
		}
	}
	for i := cutoff; i < len(out); i++ {
		for j, tc := range out[i].ToolCalls {
			if tc.Result != msgs[i].ToolCalls[j].Result {
				t.Errorf("protected message %d tool call %d was altered", i, j)
			}
		}
	}
}

func TestToolPrunePrunesOldResults(t *testing.T) {
	msgs := historyWithToolResults(8)
	pass := NewToolPrunePass(ToolPruneConfig{})

	out, entries := pass.Apply(msgs, Budget{EstimatedUsage: 90000, ContextWindow: 100000})
	if len(entries) == 0 {
		t.Fatal("expected edits outside the protected window")
	}
	for _, e := range entries {
		if e.Action != ActionPruneToolResult {
			t.Errorf("unexpected action %q", e.Action)
		}
		if e.SizeAfter >= e.SizeBefore {
			t.Errorf("edit did not shrink: before=%d after=%d", e.SizeBefore, e.SizeAfter)
		}
		if out[e.MessageIndex].ToolCalls[0].Result != DefaultToolPrunePlaceholder {
			t.Errorf("pruned result at %d is not the placeholder", e.MessageIndex)
		}
	}

	// Input must be untouched.
	if msgs[1].ToolCalls[0].Result == DefaultToolPrunePlaceholder {
		t.Error("pass mutated its input slice")
	}
}

func TestToolPruneShortHistoryFullyProtected(t *testing.T) {
	msgs := historyWithToolResults(3)
	pass := NewToolPrunePass(ToolPruneConfig{ProtectedUserTurns: 4})

	out, entries := pass.Apply(msgs, Budget{EstimatedUsage: 10_000_000, ContextWindow: 1000})
	if len(entries) != 0 {
		t.Errorf("expected no edits on a fully protected history, got %d", len(entries))
	}
	if len(out) != len(msgs) {
		t.Errorf("output shape changed")
	}
}

func TestPipelineGatesOnThreshold(t *testing.T) {
	msgs := historyWithToolResults(8)
	pipeline := DefaultPipeline(nil)

	// Below threshold: nothing runs.
	_, report := pipeline.Run(msgs, Budget{EstimatedUsage: 1000, ContextWindow: 100000})
	if len(report.PassesRun) != 0 {
		t.Errorf("passes ran below threshold: %v", report.PassesRun)
	}

	// Above threshold: the reference pass runs and reports savings.
	out, report := pipeline.Run(msgs, Budget{EstimatedUsage: 95000, ContextWindow: 100000})
	found := false
	for _, name := range report.PassesRun {
		if name == "tool_response_pruning" {
			found = true
		}
	}
	if !found {
		t.Errorf("passesRun = %v, want tool_response_pruning", report.PassesRun)
	}
	if report.EstimatedTokensSaved <= 0 {
		t.Error("expected positive token savings")
	}
	if EstimateTokens(out) >= EstimateTokens(msgs) {
		t.Error("compacted messages are not smaller")
	}
}

func TestEstimateTokensCeilingDivision(t *testing.T) {
	msg := models.WireMessage{Role: models.RoleUser, Content: "abcde"}
	if got := EstimateMessageTokens(msg); got != 2 {
		t.Errorf("EstimateMessageTokens = %d, want 2", got)
	}
	if got := EstimateMessageTokens(models.WireMessage{}); got != 0 {
		t.Errorf("empty message estimate = %d, want 0", got)
	}
}

func TestBudgetPressureFallbackWindow(t *testing.T) {
	b := Budget{EstimatedUsage: 50000}
	if p := b.Pressure(); p != 0.5 {
		t.Errorf("pressure with fallback window = %v, want 0.5", p)
	}
}
