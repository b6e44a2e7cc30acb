package agent

import (
	"strings"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// ModelPricing is USD per million tokens.
type ModelPricing struct {
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// Estimate returns the USD cost for the given usage.
func (p ModelPricing) Estimate(usage models.TokenUsage) float64 {
	total := float64(usage.InputTokens)*p.Input + float64(usage.OutputTokens)*p.Output
	return total / 1_000_000
}

// defaultPricing covers well known models by id prefix. Unknown models cost
// zero rather than guessing.
var defaultPricing = map[string]ModelPricing{
	"claude-opus":   {Input: 15, Output: 75},
	"claude-sonnet": {Input: 3, Output: 15},
	"claude-haiku":  {Input: 0.8, Output: 4},
	"gpt-4o":        {Input: 2.5, Output: 10},
	"gpt-4o-mini":   {Input: 0.15, Output: 0.6},
}

// PricingFor resolves pricing by longest matching model id prefix.
func PricingFor(model string, overrides map[string]ModelPricing) ModelPricing {
	best := ""
	var found ModelPricing
	lookup := func(table map[string]ModelPricing) {
		for prefix, pricing := range table {
			if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
				best = prefix
				found = pricing
			}
		}
	}
	lookup(defaultPricing)
	lookup(overrides)
	return found
}
