// Package strategy evaluates indicator snapshots into BUY/SELL/HOLD
// signals. Evaluation is a pure function of the input and regime so the
// same snapshot always reproduces the same signal, which the
// idempotency layer depends on.
package strategy

import (
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantpulse/quantpulse/internal/regime"
)

// Type is the signal taxonomy. BUY/SELL/HOLD is the canonical set.
type Type string

const (
	Buy  Type = "BUY"
	Sell Type = "SELL"
	Hold Type = "HOLD"
)

// Kind tags the closed set of strategy variants.
type Kind string

const (
	KindMomentum      Kind = "momentum"
	KindMeanReversion Kind = "mean_reversion"
	KindHold          Kind = "hold"
)

// ErrUnknown reports a strategy name outside the closed Kind set. It is
// a fatal configuration error at registry construction, never a
// per-tick failure.
var ErrUnknown = errors.New("strategy: unknown strategy name")

// ParseKind validates a configured strategy name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindMomentum, KindMeanReversion, KindHold:
		return Kind(name), nil
	default:
		return "", ErrUnknown
	}
}

// Input is the ephemeral per-evaluation value combining the symbol,
// bar timestamp, last price and indicator fields. Never persisted.
type Input struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
	RSI       float64
	EMAFast   float64
	EMASlow   float64
	MACDHist  float64
}

// Result is the evaluation outcome: signal type, clamped strength and
// the ordered human-readable reasoning.
type Result struct {
	Type      Type
	Strength  float64
	Reasoning []string
}

// Strategy is one variant of the closed evaluation set. Name doubles as
// the rule_version identifier on persisted signals.
type Strategy interface {
	Name() string
	Evaluate(in Input, reg regime.Regime) Result
}

// Clamp bounds persisted strength away from the display extremes.
type Clamp struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Defaults fills an unset clamp with the 5-95 band.
func (c *Clamp) Defaults() {
	if c.Min == 0 && c.Max == 0 {
		c.Min, c.Max = 5, 95
	}
}

// Apply bounds v to the clamp range. NaN and infinite readings collapse
// to the neutral midpoint; the anomaly is logged, never propagated.
func (c Clamp) Apply(v float64, symbol string) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		log.Warn().Str("symbol", symbol).Float64("strength", v).
			Msg("anomalous strength reading, defaulting to neutral")
		return 50
	}
	if v < c.Min {
		return c.Min
	}
	if v > c.Max {
		return c.Max
	}
	return v
}

// factor maps a raw reading onto a 0-100 component score, saturating at
// full. Negative readings score zero.
func factor(v, full float64) float64 {
	if v <= 0 || full <= 0 {
		return 0
	}
	if v >= full {
		return 100
	}
	return 100 * v / full
}
