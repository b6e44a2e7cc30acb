package agent

import (
	"math"
	"testing"

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

func TestPricingForLongestPrefixWins(t *testing.T) {
	p := PricingFor("gpt-4o-mini-2024-07-18", nil)
	if p.Input != 0.15 || p.Output != 0.6 {
		t.Errorf("pricing = %+v, want gpt-4o-mini rates", p)
	}

	p = PricingFor("gpt-4o-2024-08-06", nil)
	if p.Input != 2.5 || p.Output != 10 {
		t.Errorf("pricing = %+v, want gpt-4o rates", p)
	}
}

func TestPricingForOverridesBeatDefaults(t *testing.T) {
	overrides := map[string]ModelPricing{
		"claude-sonnet-4": {Input: 1, Output: 2},
	}
	p := PricingFor("claude-sonnet-4-20250514", overrides)
	if p.Input != 1 || p.Output != 2 {
		t.Errorf("pricing = %+v, want override rates", p)
	}
}

func TestPricingForUnknownModelIsZero(t *testing.T) {
	p := PricingFor("some-local-model", nil)
	if p.Input != 0 || p.Output != 0 {
		t.Errorf("pricing = %+v, want zero", p)
	}
}

func TestEstimateCost(t *testing.T) {
	p := ModelPricing{Input: 3, Output: 15}
	cost := p.Estimate(models.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000})
	if math.Abs(cost-4.5) > 1e-9 {
		t.Errorf("cost = %v, want 4.5", cost)
	}
}
