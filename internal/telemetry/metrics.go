// Package telemetry exposes the engine's Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine reports into.
type Metrics struct {
	TickDuration   prometheus.Histogram
	EvalDuration   *prometheus.HistogramVec
	SignalsEmitted *prometheus.CounterVec
	Notifications  prometheus.Counter
	SymbolsSkipped *prometheus.CounterVec
	ActiveWorkers  prometheus.Gauge
	LastTickUnix   prometheus.Gauge
}

// NewMetrics registers all collectors on reg and returns the bundle.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantpulse_tick_duration_seconds",
			Help:    "Duration of a full evaluation tick in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}),
		EvalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quantpulse_eval_duration_seconds",
			Help:    "Per-symbol evaluation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"result"}),
		SignalsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantpulse_signals_total",
			Help: "Signals persisted by type",
		}, []string{"type"}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantpulse_notifications_total",
			Help: "Signals handed to the notifier",
		}),
		SymbolsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantpulse_symbols_skipped_total",
			Help: "Symbols skipped per tick by reason",
		}, []string{"reason"}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantpulse_active_workers",
			Help: "Symbol evaluation tasks currently running",
		}),
		LastTickUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantpulse_last_tick_timestamp_seconds",
			Help: "Unix time of the last completed tick",
		}),
	}

	reg.MustRegister(
		m.TickDuration, m.EvalDuration, m.SignalsEmitted, m.Notifications,
		m.SymbolsSkipped, m.ActiveWorkers, m.LastTickUnix,
	)

	return m
}
