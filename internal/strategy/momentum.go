package strategy

import (
	"fmt"

	"github.com/quantpulse/quantpulse/internal/regime"
)

// MomentumParams tunes the momentum variant.
type MomentumParams struct {
	RSIMid   float64 `yaml:"rsi_mid"`   // BUY needs RSI reclaiming this band
	RSIUpper float64 `yaml:"rsi_upper"` // profit-taking bound
	MACDBuy  float64 `yaml:"macd_buy"`  // minimum histogram for BUY
}

// Defaults fills unset parameters.
func (p *MomentumParams) Defaults() {
	if p.RSIMid == 0 {
		p.RSIMid = 45
	}
	if p.RSIUpper == 0 {
		p.RSIUpper = 72
	}
	// MACDBuy zero means any positive histogram qualifies.
}

// Momentum rewards EMA separation with a growing MACD histogram. It
// only fires in a trending regime and takes profit once RSI runs past
// the upper bound.
type Momentum struct {
	params MomentumParams
	clamp  Clamp
}

// NewMomentum builds the momentum variant.
func NewMomentum(params MomentumParams, clamp Clamp) *Momentum {
	params.Defaults()
	clamp.Defaults()
	return &Momentum{params: params, clamp: clamp}
}

func (s *Momentum) Name() string { return "momentum_v1" }

// EMA separation of 2% of price and a histogram of 0.5% of price earn
// full component marks; the weights are 50/30/20.
const (
	fullSpreadFrac = 0.02
	fullHistFrac   = 0.005
)

func (s *Momentum) Evaluate(in Input, reg regime.Regime) Result {
	if reg != regime.Trend {
		return Result{
			Type:      Hold,
			Strength:  s.clamp.Apply(0, in.Symbol),
			Reasoning: []string{fmt.Sprintf("regime %s: momentum signals disabled outside trend", reg)},
		}
	}
	if in.Price <= 0 {
		return Result{
			Type:      Hold,
			Strength:  s.clamp.Apply(0, in.Symbol),
			Reasoning: []string{"non-positive price; holding"},
		}
	}

	spread := in.EMAFast - in.EMASlow
	relSpread := spread / in.Price
	relHist := in.MACDHist / in.Price

	switch {
	case in.RSI >= s.params.RSIUpper:
		// Profit-taking: the move is extended.
		if in.MACDHist < 0 {
			strength := 0.5*factor(-relHist, fullHistFrac) +
				0.3*factor(in.RSI-s.params.RSIUpper, 100-s.params.RSIUpper) +
				0.2*factor(-relSpread, fullSpreadFrac)
			return Result{
				Type:     Sell,
				Strength: s.clamp.Apply(strength, in.Symbol),
				Reasoning: []string{
					fmt.Sprintf("RSI %.1f >= %.1f (overbought)", in.RSI, s.params.RSIUpper),
					"MACD histogram negative while extended (momentum fading)",
				},
			}
		}
		return Result{
			Type:     Hold,
			Strength: s.clamp.Apply(0.3*factor(in.RSI-s.params.RSIUpper, 100-s.params.RSIUpper), in.Symbol),
			Reasoning: []string{
				fmt.Sprintf("RSI %.1f >= %.1f (extended); no new exposure", in.RSI, s.params.RSIUpper),
			},
		}

	case in.RSI >= s.params.RSIMid && spread > 0 && in.MACDHist > s.params.MACDBuy:
		strength := 0.5*factor(relSpread, fullSpreadFrac) +
			0.3*factor(in.RSI-s.params.RSIMid, s.params.RSIUpper-s.params.RSIMid) +
			0.2*factor(relHist, fullHistFrac)
		return Result{
			Type:     Buy,
			Strength: s.clamp.Apply(strength, in.Symbol),
			Reasoning: []string{
				fmt.Sprintf("RSI %.1f reclaimed mid-band %.0f", in.RSI, s.params.RSIMid),
				"EMA fast above EMA slow (bullish alignment)",
				fmt.Sprintf("MACD histogram %.4f above %.4f", in.MACDHist, s.params.MACDBuy),
			},
		}

	case spread < 0 && in.MACDHist < -s.params.MACDBuy && in.RSI < 50:
		strength := 0.5*factor(-relSpread, fullSpreadFrac) +
			0.3*factor(50-in.RSI, 25) +
			0.2*factor(-relHist, fullHistFrac)
		return Result{
			Type:     Sell,
			Strength: s.clamp.Apply(strength, in.Symbol),
			Reasoning: []string{
				"EMA fast below EMA slow (bearish alignment)",
				fmt.Sprintf("MACD histogram %.4f below %.4f", in.MACDHist, -s.params.MACDBuy),
				fmt.Sprintf("RSI %.1f below mid-band", in.RSI),
			},
		}
	}

	return Result{
		Type:      Hold,
		Strength:  s.clamp.Apply(factor(fullHistFrac-absFloat(relHist), fullHistFrac)*0.4, in.Symbol),
		Reasoning: []string{"momentum neutral; holding position"},
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
