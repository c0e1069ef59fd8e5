package strategy

import "github.com/quantpulse/quantpulse/internal/regime"

// HoldStrategy is the fallback for unmapped symbols. It always holds.
type HoldStrategy struct {
	clamp Clamp
}

// NewHold builds the fallback variant.
func NewHold(clamp Clamp) *HoldStrategy {
	clamp.Defaults()
	return &HoldStrategy{clamp: clamp}
}

func (s *HoldStrategy) Name() string { return "hold_v1" }

func (s *HoldStrategy) Evaluate(in Input, reg regime.Regime) Result {
	return Result{
		Type:      Hold,
		Strength:  s.clamp.Apply(0, in.Symbol),
		Reasoning: []string{"no strategy assigned; defaulting to HOLD"},
	}
}
