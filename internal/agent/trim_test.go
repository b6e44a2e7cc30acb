package agent

import (
	"fmt"
	"testing"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

func resultMessage(id, text string) models.WireMessage {
	return models.WireMessage{
		Role:      models.RoleUser,
		ToolCalls: []models.ToolCall{{ID: id, Result: text}},
	}
}

func TestTrimToolResultsKeepsRecentWindow(t *testing.T) {
	var messages []models.WireMessage
	for i := 0; i < 10; i++ {
		messages = append(messages, models.WireMessage{Role: models.RoleUser, Content: "q"})
		messages = append(messages, resultMessage(fmt.Sprintf("c%d", i), fmt.Sprintf("result %d", i)))
	}

	trimmed := trimToolResults(messages, 6)

	kept, cleared := 0, 0
	for _, msg := range trimmed {
		for _, tc := range msg.ToolCalls {
			switch tc.Result {
			case trimmedResultPlaceholder:
				cleared++
			case "":
			default:
				kept++
			}
		}
	}
	if kept != 6 {
		t.Errorf("full results kept = %d, want 6", kept)
	}
	if cleared != 4 {
		t.Errorf("results cleared = %d, want 4", cleared)
	}

	// The most recent results survive untouched.
	last := trimmed[len(trimmed)-1]
	if last.ToolCalls[0].Result != "result 9" {
		t.Errorf("newest result = %q", last.ToolCalls[0].Result)
	}
	// The input slice is never mutated.
	if messages[1].ToolCalls[0].Result != "result 0" {
		t.Error("input transcript was mutated")
	}
}

func TestTrimToolResultsShortTranscriptUntouched(t *testing.T) {
	messages := []models.WireMessage{
		{Role: models.RoleUser, Content: "q"},
		resultMessage("c1", "one"),
		resultMessage("c2", "two"),
	}
	trimmed := trimToolResults(messages, 6)
	if len(trimmed) != len(messages) {
		t.Fatalf("length changed: %d", len(trimmed))
	}
	for i := range trimmed {
		for j, tc := range trimmed[i].ToolCalls {
			if tc.Result != messages[i].ToolCalls[j].Result {
				t.Errorf("message %d call %d changed to %q", i, j, tc.Result)
			}
		}
	}
}

func TestTrimToolResultsIdempotent(t *testing.T) {
	var messages []models.WireMessage
	for i := 0; i < 10; i++ {
		messages = append(messages, resultMessage(fmt.Sprintf("c%d", i), fmt.Sprintf("r%d", i)))
	}
	once := trimToolResults(messages, 6)
	twice := trimToolResults(once, 6)
	for i := range once {
		if once[i].ToolCalls[0].Result != twice[i].ToolCalls[0].Result {
			t.Fatalf("second trim changed message %d", i)
		}
	}
}
