package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpulse/quantpulse/internal/regime"
)

func testInput(price, rsi, emaFast, emaSlow, macdHist float64) Input {
	return Input{
		Symbol:    "BTC-USD",
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Price:     price,
		RSI:       rsi,
		EMAFast:   emaFast,
		EMASlow:   emaSlow,
		MACDHist:  macdHist,
	}
}

func allStrategies() []Strategy {
	clamp := Clamp{}
	return []Strategy{
		NewMomentum(MomentumParams{}, clamp),
		NewMeanReversion(MeanReversionParams{}, clamp),
		NewHold(clamp),
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	in := testInput(100, 55, 101, 100, 0.3)

	for _, s := range allStrategies() {
		for _, reg := range []regime.Regime{regime.Trend, regime.Range, regime.Uncertain} {
			first := s.Evaluate(in, reg)
			second := s.Evaluate(in, reg)
			require.Equal(t, first, second,
				"%s must be pure: identical input, identical output", s.Name())
		}
	}
}

func TestEvaluate_UncertainRegimeNeverDirectional(t *testing.T) {
	inputs := []Input{
		testInput(100, 55, 105, 100, 2.0),  // screaming momentum buy
		testInput(100, 20, 100.1, 100, 0),  // deep oversold
		testInput(100, 85, 95, 100, -2.0),  // screaming sell
		testInput(100, 50, 100, 100, 0),    // neutral
	}

	for _, s := range allStrategies() {
		for _, in := range inputs {
			res := s.Evaluate(in, regime.Uncertain)
			assert.Equal(t, Hold, res.Type,
				"%s must abstain in uncertain regime", s.Name())
		}
	}
}

func TestEvaluate_StrengthAlwaysWithinClamp(t *testing.T) {
	values := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -50, 0, 28, 50, 72, 100, 1e9}
	regimes := []regime.Regime{regime.Trend, regime.Range, regime.Uncertain}

	for _, s := range allStrategies() {
		for _, reg := range regimes {
			for _, rsi := range values {
				for _, hist := range values {
					res := s.Evaluate(testInput(100, rsi, 101, 100, hist), reg)
					require.False(t, math.IsNaN(res.Strength), "%s produced NaN strength", s.Name())
					require.GreaterOrEqual(t, res.Strength, 5.0)
					require.LessOrEqual(t, res.Strength, 95.0)
					require.NotEmpty(t, res.Reasoning)
				}
			}
		}
	}
}

func TestMomentum_BuyOnAlignedTrend(t *testing.T) {
	s := NewMomentum(MomentumParams{}, Clamp{})
	res := s.Evaluate(testInput(100, 55, 101, 100, 0.3), regime.Trend)

	assert.Equal(t, Buy, res.Type)
	assert.Greater(t, res.Strength, 40.0)
	assert.Contains(t, res.Reasoning[0], "reclaimed mid-band")
}

func TestMomentum_ProfitTakingWhenOverbought(t *testing.T) {
	s := NewMomentum(MomentumParams{}, Clamp{})

	// Extended with fading momentum: downgrade to SELL.
	res := s.Evaluate(testInput(100, 80, 99, 100, -0.4), regime.Trend)
	assert.Equal(t, Sell, res.Type)

	// Extended but momentum intact: no new exposure, HOLD.
	res = s.Evaluate(testInput(100, 80, 102, 100, 0.5), regime.Trend)
	assert.Equal(t, Hold, res.Type)
}

func TestMomentum_SellOnBearishAlignment(t *testing.T) {
	s := NewMomentum(MomentumParams{}, Clamp{})
	res := s.Evaluate(testInput(100, 38, 99, 100, -0.4), regime.Trend)
	assert.Equal(t, Sell, res.Type)
}

func TestMomentum_HoldOutsideTrend(t *testing.T) {
	s := NewMomentum(MomentumParams{}, Clamp{})
	res := s.Evaluate(testInput(100, 55, 105, 100, 2.0), regime.Range)
	assert.Equal(t, Hold, res.Type)
	assert.Contains(t, res.Reasoning[0], "momentum signals disabled")
}

func TestMeanReversion_BuyOnOversoldCompression(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{}, Clamp{})
	res := s.Evaluate(testInput(100, 28, 100.2, 100, 0.1), regime.Range)

	assert.Equal(t, Buy, res.Type)
	assert.Greater(t, res.Strength, 40.0)
	assert.Contains(t, res.Reasoning[0], "oversold")
}

func TestMeanReversion_SellOnOverboughtFade(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{}, Clamp{})
	res := s.Evaluate(testInput(100, 76, 100.5, 100, -0.2), regime.Range)
	assert.Equal(t, Sell, res.Type)
}

func TestMeanReversion_NoBuyWithoutCompression(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{}, Clamp{})
	// Oversold but the EMAs are wide apart: not a reversion setup.
	res := s.Evaluate(testInput(100, 28, 104, 100, 0.1), regime.Range)
	assert.Equal(t, Hold, res.Type)
}

func TestMeanReversion_HoldOutsideRange(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{}, Clamp{})
	res := s.Evaluate(testInput(100, 28, 100.2, 100, 0.1), regime.Trend)
	assert.Equal(t, Hold, res.Type)
}

func TestHold_AlwaysHolds(t *testing.T) {
	s := NewHold(Clamp{})
	for _, reg := range []regime.Regime{regime.Trend, regime.Range, regime.Uncertain} {
		res := s.Evaluate(testInput(100, 20, 105, 100, 2.0), reg)
		assert.Equal(t, Hold, res.Type)
		assert.Equal(t, []string{"no strategy assigned; defaulting to HOLD"}, res.Reasoning)
	}
}

func TestConstantMarketHolds(t *testing.T) {
	// Flat 100s: no crossover, neutral RSI. Every variant holds.
	in := testInput(100, 50, 100, 100, 0)
	for _, s := range allStrategies() {
		for _, reg := range []regime.Regime{regime.Trend, regime.Range, regime.Uncertain} {
			res := s.Evaluate(in, reg)
			assert.Equal(t, Hold, res.Type, "%s in %s", s.Name(), reg)
		}
	}
}
