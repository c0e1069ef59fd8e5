package indicator

import (
	"fmt"
	"math"

	"github.com/quantpulse/quantpulse/internal/persistence"
)

// TrendStrength measures directional persistence of closes over the
// final period+1 bars: 100 * |net move| / total movement. A clean trend
// scores near 100, a flat or fully mean-reverting window near 0.
// ADX proxy; the regime thresholds are calibrated against this scale.
func TrendStrength(bars []persistence.PriceBar, period int) (float64, error) {
	if period <= 0 || len(bars) < period+1 {
		return 0, ErrInsufficientData
	}

	window := bars[len(bars)-period-1:]
	var net, total float64
	for i := 1; i < len(window); i++ {
		delta := window[i].Close - window[i-1].Close
		net += delta
		total += math.Abs(delta)
	}

	if total == 0 {
		return 0, nil
	}
	return 100 * math.Abs(net) / total, nil
}

// Compute builds the full indicator snapshot from an ascending bar
// window, or returns ErrInsufficientData when the window is too short
// for any configured indicator. All values are rounded to the fixed
// persistence precision.
func Compute(bars []persistence.PriceBar, cfg Config) (persistence.IndicatorSnapshot, error) {
	cfg.Defaults()

	var snap persistence.IndicatorSnapshot
	if len(bars) < cfg.MinBars() {
		return snap, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientData, len(bars), cfg.MinBars())
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	rsi, err := RSI(closes, cfg.RSIPeriod)
	if err != nil {
		return snap, err
	}
	emaFast, err := EMA(closes, cfg.EMAFast)
	if err != nil {
		return snap, err
	}
	emaSlow, err := EMA(closes, cfg.EMASlow)
	if err != nil {
		return snap, err
	}
	macdHist, err := MACDHistogram(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	if err != nil {
		return snap, err
	}
	trend, err := TrendStrength(bars, cfg.TrendPeriod)
	if err != nil {
		return snap, err
	}

	last := bars[len(bars)-1]
	snap = persistence.IndicatorSnapshot{
		Symbol:        last.Symbol,
		Timestamp:     last.Timestamp.UTC(),
		Price:         Round6(last.Close),
		RSI:           Round6(rsi),
		EMAFast:       Round6(emaFast),
		EMASlow:       Round6(emaSlow),
		MACDHist:      Round6(macdHist),
		TrendStrength: Round6(trend),
	}
	return snap, nil
}
