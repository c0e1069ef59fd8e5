package strategy

import (
	"fmt"

	"github.com/quantpulse/quantpulse/internal/regime"
)

// MeanReversionParams tunes the mean-reversion variant.
type MeanReversionParams struct {
	BuyRSI      float64 `yaml:"buy_rsi"`     // oversold band
	SellRSI     float64 `yaml:"sell_rsi"`    // overbought band
	Compression float64 `yaml:"compression"` // max |EMA spread|/price counted as compressed
}

// Defaults fills unset parameters.
func (p *MeanReversionParams) Defaults() {
	if p.BuyRSI == 0 {
		p.BuyRSI = 35
	}
	if p.SellRSI == 0 {
		p.SellRSI = 70
	}
	if p.Compression == 0 {
		p.Compression = 0.01
	}
}

// MeanReversion buys RSI reclaims out of the oversold band while the
// EMAs are compressed, and sells overbought RSI while momentum fades.
// It only fires in a ranging regime.
type MeanReversion struct {
	params MeanReversionParams
	clamp  Clamp
}

// NewMeanReversion builds the mean-reversion variant.
func NewMeanReversion(params MeanReversionParams, clamp Clamp) *MeanReversion {
	params.Defaults()
	clamp.Defaults()
	return &MeanReversion{params: params, clamp: clamp}
}

func (s *MeanReversion) Name() string { return "mean_reversion_v1" }

func (s *MeanReversion) Evaluate(in Input, reg regime.Regime) Result {
	if reg != regime.Range {
		return Result{
			Type:      Hold,
			Strength:  s.clamp.Apply(0, in.Symbol),
			Reasoning: []string{fmt.Sprintf("regime %s: mean-reversion signals disabled outside range", reg)},
		}
	}
	if in.Price <= 0 {
		return Result{
			Type:      Hold,
			Strength:  s.clamp.Apply(0, in.Symbol),
			Reasoning: []string{"non-positive price; holding"},
		}
	}

	relSpread := absFloat(in.EMAFast-in.EMASlow) / in.Price
	relHist := in.MACDHist / in.Price
	compressed := relSpread <= s.params.Compression
	// Full compression credit when the EMAs sit on top of each other.
	compFactor := factor(s.params.Compression-relSpread, s.params.Compression)

	switch {
	case in.RSI <= s.params.BuyRSI && compressed:
		strength := 0.5*factor(s.params.BuyRSI-in.RSI, 20) +
			0.3*compFactor +
			0.2*factor(relHist+fullHistFrac, 2*fullHistFrac)
		return Result{
			Type:     Buy,
			Strength: s.clamp.Apply(strength, in.Symbol),
			Reasoning: []string{
				fmt.Sprintf("RSI %.1f <= %.1f (oversold)", in.RSI, s.params.BuyRSI),
				fmt.Sprintf("EMA spread %.2f%% of price (compressed)", relSpread*100),
			},
		}

	case in.RSI >= s.params.SellRSI && in.MACDHist <= 0:
		strength := 0.5*factor(in.RSI-s.params.SellRSI, 20) +
			0.3*compFactor +
			0.2*factor(-relHist, fullHistFrac)
		return Result{
			Type:     Sell,
			Strength: s.clamp.Apply(strength, in.Symbol),
			Reasoning: []string{
				fmt.Sprintf("RSI %.1f >= %.1f (overbought)", in.RSI, s.params.SellRSI),
				"MACD histogram non-positive (momentum fading)",
			},
		}
	}

	return Result{
		Type:      Hold,
		Strength:  s.clamp.Apply(factor(25-absFloat(in.RSI-50), 25)*0.4, in.Symbol),
		Reasoning: []string{"RSI and EMA spread neutral; holding position"},
	}
}
