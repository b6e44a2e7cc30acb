package agent

import "github.com/imdanibytes/nexus-agent-sub000/pkg/models"

// trimmedResultPlaceholder replaces tool-result text dropped by the between-
// rounds trim. The call record stays so the model sees that the tool ran.
const trimmedResultPlaceholder = "[Tool result truncated]"

// DefaultTrimKeepLast is the bounded-window trim default: full tool-result
// text is kept only for the most recent entries carrying results.
const DefaultTrimKeepLast = 6

// trimToolResults applies the bounded-window trim to a turn's growing
// transcript: tool-result entries beyond the keepLast most recent have their
// result text replaced. Returns a rewritten copy when anything changed.
func trimToolResults(messages []models.WireMessage, keepLast int) []models.WireMessage {
	if keepLast <= 0 {
		keepLast = DefaultTrimKeepLast
	}

	// Find the cutoff: the index of the keepLast-th most recent entry that
	// carries tool results.
	remaining := keepLast
	cutoff := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if !carriesToolResults(messages[i]) {
			continue
		}
		remaining--
		if remaining == 0 {
			cutoff = i
			break
		}
	}
	if remaining > 0 {
		return messages
	}

	var next []models.WireMessage
	for i := 0; i < cutoff; i++ {
		msg := messages[i]
		edited := false
		for j, tc := range msg.ToolCalls {
			if tc.Result == "" || tc.Result == trimmedResultPlaceholder {
				continue
			}
			if !edited {
				msg.ToolCalls = append([]models.ToolCall(nil), msg.ToolCalls...)
				edited = true
			}
			msg.ToolCalls[j].Result = trimmedResultPlaceholder
		}
		if edited {
			if next == nil {
				next = append([]models.WireMessage(nil), messages...)
			}
			next[i] = msg
		}
	}
	if next == nil {
		return messages
	}
	return next
}

func carriesToolResults(msg models.WireMessage) bool {
	for _, tc := range msg.ToolCalls {
		if tc.Result != "" {
			return true
		}
	}
	return false
}
