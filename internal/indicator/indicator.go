// Package indicator computes RSI, EMA, MACD histogram and a trend
// strength proxy from a rolling window of price bars. All persisted
// values are rounded to 6 decimals so replaying the same window yields
// bit-identical output.
package indicator

import (
	"errors"
	"math"
)

// ErrInsufficientData reports a window shorter than an indicator's
// required lookback. Callers skip the symbol for the tick.
var ErrInsufficientData = errors.New("indicator: insufficient history")

// Config holds the indicator periods. Zero values fall back to the
// conventional defaults.
type Config struct {
	RSIPeriod   int `yaml:"rsi_period"`
	EMAFast     int `yaml:"ema_fast"`
	EMASlow     int `yaml:"ema_slow"`
	MACDFast    int `yaml:"macd_fast"`
	MACDSlow    int `yaml:"macd_slow"`
	MACDSignal  int `yaml:"macd_signal"`
	TrendPeriod int `yaml:"trend_period"`
}

// Defaults fills unset periods with the standard 14/12/26/9 values.
func (c *Config) Defaults() {
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.EMAFast <= 0 {
		c.EMAFast = 12
	}
	if c.EMASlow <= 0 {
		c.EMASlow = 26
	}
	if c.MACDFast <= 0 {
		c.MACDFast = 12
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = 26
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = 9
	}
	if c.TrendPeriod <= 0 {
		c.TrendPeriod = 14
	}
}

// MinBars returns the window length required to compute every
// configured indicator.
func (c Config) MinBars() int {
	min := c.RSIPeriod + 1
	if n := c.MACDSlow + c.MACDSignal - 1; n > min {
		min = n
	}
	if n := c.EMASlow; n > min {
		min = n
	}
	if n := c.TrendPeriod + 1; n > min {
		min = n
	}
	return min
}

// Round6 rounds to 6 decimals, the fixed persistence precision.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// RSI computes the Wilder-smoothed Relative Strength Index over the
// final value of prices. Requires period+1 observations.
func RSI(prices []float64, period int) (float64, error) {
	if period <= 0 || len(prices) < period+1 {
		return 0, ErrInsufficientData
	}

	// Seed averages from the first period deltas.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remainder of the window.
	for i := period + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// EMA computes the exponential moving average of the final value of
// prices with alpha = 2/(period+1), seeded from the simple average of
// the first period values.
func EMA(prices []float64, period int) (float64, error) {
	series, err := emaSeries(prices, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// emaSeries returns the EMA value at every index from period-1 onward.
func emaSeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 || len(prices) < period {
		return nil, ErrInsufficientData
	}

	alpha := 2.0 / float64(period+1)

	var seed float64
	for _, p := range prices[:period] {
		seed += p
	}
	seed /= float64(period)

	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, seed)
	ema := seed
	for _, p := range prices[period:] {
		ema = alpha*p + (1-alpha)*ema
		out = append(out, ema)
	}
	return out, nil
}

// MACDHistogram computes (EMA_fast - EMA_slow) minus the signal-period
// EMA of that spread, evaluated at the final bar. Requires
// slow+signal-1 observations.
func MACDHistogram(prices []float64, fast, slow, signal int) (float64, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return 0, ErrInsufficientData
	}
	if len(prices) < slow+signal-1 {
		return 0, ErrInsufficientData
	}

	fastSeries, err := emaSeries(prices, fast)
	if err != nil {
		return 0, err
	}
	slowSeries, err := emaSeries(prices, slow)
	if err != nil {
		return 0, err
	}

	// Align both series on the slow seed index.
	offset := len(fastSeries) - len(slowSeries)
	macdLine := make([]float64, len(slowSeries))
	for i := range slowSeries {
		macdLine[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries, err := emaSeries(macdLine, signal)
	if err != nil {
		return 0, err
	}

	return macdLine[len(macdLine)-1] - signalSeries[len(signalSeries)-1], nil
}
