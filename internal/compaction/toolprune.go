package compaction

import "github.com/imdanibytes/nexus-agent-sub000/pkg/models"

// ToolPruneConfig configures the tool-result pruning pass.
type ToolPruneConfig struct {
	// ActivationThreshold is the pressure above which the pass runs.
	// Default: 0.7.
	ActivationThreshold float64

	// ProtectedUserTurns is the number of most recent user turns whose
	// messages are never altered. Default: 4.
	ProtectedUserTurns int

	// Placeholder replaces pruned tool-result text.
	Placeholder string
}

// DefaultToolPrunePlaceholder replaces pruned tool-result text. The call
// record itself is kept so the transcript shape stays intact.
const DefaultToolPrunePlaceholder = "[Old tool result content cleared]"

// ToolPrunePass replaces tool-result text in messages older than the
// protected recent window with a placeholder. Result presence and ordering
// are preserved; only the text body is dropped.
type ToolPrunePass struct {
	config ToolPruneConfig
}

// NewToolPrunePass builds the pass, filling zero config fields with
// defaults.
func NewToolPrunePass(config ToolPruneConfig) *ToolPrunePass {
	if config.ActivationThreshold <= 0 {
		config.ActivationThreshold = 0.7
	}
	if config.ProtectedUserTurns <= 0 {
		config.ProtectedUserTurns = 4
	}
	if config.Placeholder == "" {
		config.Placeholder = DefaultToolPrunePlaceholder
	}
	return &ToolPrunePass{config: config}
}

func (p *ToolPrunePass) Name() string { return "tool_response_pruning" }

func (p *ToolPrunePass) Threshold() float64 { return p.config.ActivationThreshold }

// Apply prunes tool results outside the protected window. Messages inside
// the window are never touched regardless of pressure.
func (p *ToolPrunePass) Apply(messages []models.WireMessage, budget Budget) ([]models.WireMessage, []Entry) {
	cutoff := protectedWindowStart(messages, p.config.ProtectedUserTurns)
	if cutoff == 0 {
		return messages, nil
	}

	var entries []Entry
	var next []models.WireMessage

	for i := 0; i < cutoff; i++ {
		msg := messages[i]
		edited := false
		for j, tc := range msg.ToolCalls {
			if tc.Result == "" || tc.Result == p.config.Placeholder {
				continue
			}
			if !edited {
				msg.ToolCalls = append([]models.ToolCall(nil), msg.ToolCalls...)
				edited = true
			}
			before := len(tc.Result)
			msg.ToolCalls[j].Result = p.config.Placeholder
			entries = append(entries, Entry{
				Pass:         p.Name(),
				MessageIndex: i,
				ToolCallID:   tc.ID,
				Action:       ActionPruneToolResult,
				SizeBefore:   before,
				SizeAfter:    len(p.config.Placeholder),
			})
		}
		if edited {
			if next == nil {
				next = append([]models.WireMessage(nil), messages...)
			}
			next[i] = msg
		}
	}

	if next == nil {
		return messages, nil
	}
	return next, entries
}

// protectedWindowStart returns the index of the first message inside the
// protected window: everything from the Nth-from-last user message onward.
// A transcript with fewer user turns than the window is fully protected.
func protectedWindowStart(messages []models.WireMessage, userTurns int) int {
	remaining := userTurns
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			remaining--
			if remaining == 0 {
				return i
			}
		}
	}
	return 0
}
