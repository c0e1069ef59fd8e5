// Package regime classifies the market state of a single symbol from
// its trend strength. The regime gates which strategy family is
// trusted: momentum logic only fires in a trend, mean-reversion only in
// a range, and an uncertain reading always abstains.
package regime

import "math"

// Regime is the market state classification.
type Regime int

const (
	Trend Regime = iota
	Range
	Uncertain
)

func (r Regime) String() string {
	switch r {
	case Trend:
		return "trend"
	case Range:
		return "range"
	default:
		return "uncertain"
	}
}

// Thresholds holds the tunable classification cut-offs on the 0-100
// trend strength scale.
type Thresholds struct {
	Trend float64 `yaml:"trend"` // above: trending market
	Range float64 `yaml:"range"` // below: ranging market
}

// Defaults fills unset thresholds with the conventional 25/20 bands.
func (t *Thresholds) Defaults() {
	if t.Trend == 0 {
		t.Trend = 25
	}
	if t.Range == 0 {
		t.Range = 20
	}
}

// Classify maps a trend strength reading to a regime. A NaN reading is
// treated as Uncertain so anomalous inputs can never unlock a
// directional strategy.
func Classify(trendStrength float64, t Thresholds) Regime {
	t.Defaults()

	if math.IsNaN(trendStrength) {
		return Uncertain
	}

	switch {
	case trendStrength > t.Trend:
		return Trend
	case trendStrength < t.Range:
		return Range
	default:
		return Uncertain
	}
}
