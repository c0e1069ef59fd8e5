// Package engine runs the per-tick evaluation pass: window read,
// indicator computation, regime classification, strategy evaluation,
// idempotent persistence and cooldown-gated notification. Symbols are
// evaluated in parallel on a bounded pool; the same symbol is strictly
// serialized across ticks.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/quantpulse/quantpulse/internal/cache"
	"github.com/quantpulse/quantpulse/internal/gate"
	"github.com/quantpulse/quantpulse/internal/guard"
	"github.com/quantpulse/quantpulse/internal/indicator"
	"github.com/quantpulse/quantpulse/internal/marketdata"
	"github.com/quantpulse/quantpulse/internal/persistence"
	"github.com/quantpulse/quantpulse/internal/regime"
	"github.com/quantpulse/quantpulse/internal/strategy"
	"github.com/quantpulse/quantpulse/internal/telemetry"
)

// Config holds the engine's evaluation parameters.
type Config struct {
	Symbols     []string
	Timeframe   string
	Workers     int
	TickTimeout time.Duration
	WindowBars  int
	// IngestBars persists provider windows; off when the provider
	// already reads from persistence.
	IngestBars bool
	Indicator  indicator.Config
	Regime     regime.Thresholds
}

func (c *Config) defaults() {
	if c.Timeframe == "" {
		c.Timeframe = "15m"
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = 2 * time.Minute
	}
	if c.WindowBars <= 0 {
		c.WindowBars = 200
	}
	c.Indicator.Defaults()
	c.Regime.Defaults()
}

// Resolver maps a symbol to its strategy. Satisfied by
// *strategy.Registry.
type Resolver interface {
	Resolve(symbol string) strategy.Strategy
}

// Deps are the engine's collaborators.
type Deps struct {
	Repo     persistence.Repository
	Provider marketdata.Provider
	Registry Resolver
	Guard    *guard.Guard
	Gate     *gate.Gate
	// Snapshots is an optional write-behind cache.
	Snapshots *cache.SnapshotCache
	Metrics   *telemetry.Metrics
}

// Engine coordinates one evaluation pass per tick.
type Engine struct {
	cfg  Config
	deps Deps

	nowFn func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds an engine. Metrics may be nil; a throwaway registry is
// used so call sites never need nil checks.
func New(cfg Config, deps Deps) *Engine {
	cfg.defaults()
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewMetrics(noopRegisterer{})
	}
	return &Engine{
		cfg:   cfg,
		deps:  deps,
		nowFn: time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// TickReport summarizes one tick.
type TickReport struct {
	RunID     string
	Started   time.Time
	Duration  time.Duration
	Evaluated int
	Skipped   int
	Deferred  int
	Notified  int
	Errors    int
}

type outcome struct {
	evaluated bool
	notified  bool
	skipped   bool
	failed    bool
	reason    string
}

// RunTick evaluates every configured symbol once. Per-symbol failures
// are isolated; exceeding the tick deadline stops new dispatches while
// in-flight work finishes, and the resulting partial tick is a correct
// outcome, not an error. Only the parent context cancels in-flight
// evaluations, so a shutdown still interrupts the tick.
func (e *Engine) RunTick(ctx context.Context) TickReport {
	report := TickReport{RunID: uuid.NewString(), Started: e.nowFn()}

	// The deadline gates dispatch only; evaluations run on the parent
	// context so a symbol picked up before the deadline commits its
	// writes instead of being cancelled mid-pipeline.
	deadline, cancel := context.WithTimeout(ctx, e.cfg.TickTimeout)
	defer cancel()

	log.Info().Str("run_id", report.RunID).Int("symbols", len(e.cfg.Symbols)).Msg("tick started")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, e.cfg.Workers)
	)

	for _, symbol := range e.cfg.Symbols {
		if deadline.Err() != nil {
			// Deadline reached: defer the remaining symbols to the
			// next tick instead of racing the clock.
			mu.Lock()
			report.Deferred++
			mu.Unlock()
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-deadline.Done():
			// Deadline expired while waiting for a worker slot.
			mu.Lock()
			report.Deferred++
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			e.deps.Metrics.ActiveWorkers.Inc()
			defer e.deps.Metrics.ActiveWorkers.Dec()

			// Cross-tick serialization: the cooldown read depends on
			// the previous tick's committed write for this symbol.
			lock := e.lockFor(symbol)
			lock.Lock()
			defer lock.Unlock()

			started := e.nowFn()
			out := e.evalSymbol(ctx, symbol)
			e.deps.Metrics.EvalDuration.WithLabelValues(out.reason).Observe(e.nowFn().Sub(started).Seconds())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case out.failed:
				report.Errors++
			case out.skipped:
				report.Skipped++
			case out.evaluated:
				report.Evaluated++
			}
			if out.notified {
				report.Notified++
			}
		}(symbol)
	}

	wg.Wait()
	report.Duration = e.nowFn().Sub(report.Started)

	e.deps.Metrics.TickDuration.Observe(report.Duration.Seconds())
	e.deps.Metrics.LastTickUnix.Set(float64(e.nowFn().Unix()))

	log.Info().
		Str("run_id", report.RunID).
		Int("evaluated", report.Evaluated).
		Int("skipped", report.Skipped).
		Int("deferred", report.Deferred).
		Int("notified", report.Notified).
		Int("errors", report.Errors).
		Dur("duration", report.Duration).
		Msg("tick finished")

	return report
}

// evalSymbol runs the full pipeline for one symbol. Every failure path
// logs and returns; nothing here may abort sibling evaluations.
func (e *Engine) evalSymbol(ctx context.Context, symbol string) outcome {
	bars, err := e.deps.Provider.Bars(ctx, symbol, e.cfg.WindowBars)
	if err != nil {
		if errors.Is(err, marketdata.ErrProviderUnavailable) {
			log.Warn().Err(err).Str("symbol", symbol).Msg("provider unavailable, keeping stale state")
			e.deps.Metrics.SymbolsSkipped.WithLabelValues("provider_unavailable").Inc()
			return outcome{skipped: true, reason: "provider_unavailable"}
		}
		log.Error().Err(err).Str("symbol", symbol).Msg("bar window read failed")
		e.deps.Metrics.SymbolsSkipped.WithLabelValues("error").Inc()
		return outcome{failed: true, reason: "error"}
	}

	if e.cfg.IngestBars && len(bars) > 0 {
		if _, err := e.deps.Repo.Bars.UpsertBars(ctx, bars); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("bar upsert failed")
			return outcome{failed: true, reason: "error"}
		}
	}

	snap, err := indicator.Compute(bars, e.cfg.Indicator)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			log.Info().Str("symbol", symbol).Int("bars", len(bars)).Msg("insufficient history, skipping")
			e.deps.Metrics.SymbolsSkipped.WithLabelValues("data_insufficient").Inc()
			return outcome{skipped: true, reason: "data_insufficient"}
		}
		log.Error().Err(err).Str("symbol", symbol).Msg("indicator computation failed")
		return outcome{failed: true, reason: "error"}
	}

	reg := regime.Classify(snap.TrendStrength, e.cfg.Regime)
	snap.Regime = reg.String()

	if err := e.deps.Repo.Snapshots.Upsert(ctx, snap); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("snapshot upsert failed")
		return outcome{failed: true, reason: "error"}
	}
	if e.deps.Snapshots != nil {
		if err := e.deps.Snapshots.Put(ctx, snap); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("snapshot cache write failed")
		}
	}

	strat := e.deps.Registry.Resolve(symbol)
	result := strat.Evaluate(strategy.Input{
		Symbol:    symbol,
		Timestamp: snap.Timestamp,
		Price:     snap.Price,
		RSI:       snap.RSI,
		EMAFast:   snap.EMAFast,
		EMASlow:   snap.EMASlow,
		MACDHist:  snap.MACDHist,
	}, reg)

	sig := persistence.Signal{
		Symbol:         symbol,
		Timestamp:      snap.Timestamp,
		Type:           string(result.Type),
		Strength:       result.Strength,
		Reasoning:      result.Reasoning,
		RuleVersion:    strat.Name(),
		IdempotencyKey: guard.Key(symbol, e.cfg.Timeframe, strat.Name(), snap.Timestamp),
		PriceAtSignal:  snap.Price,
	}

	inserted, err := e.deps.Repo.Signals.InsertIfAbsent(ctx, sig)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("signal insert failed")
		return outcome{failed: true, reason: "error"}
	}
	if inserted {
		e.deps.Metrics.SignalsEmitted.WithLabelValues(sig.Type).Inc()
	} else {
		log.Debug().Str("key", sig.IdempotencyKey).Msg("duplicate signal ignored")
	}

	verdict, err := e.deps.Guard.Check(ctx, sig, e.nowFn())
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("cooldown check failed")
		return outcome{failed: true, reason: "error"}
	}

	notified, err := e.deps.Gate.Offer(ctx, sig, verdict)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("notification gate failed")
		return outcome{failed: true, reason: "error"}
	}
	if notified {
		e.deps.Metrics.Notifications.Inc()
	}

	log.Debug().
		Str("symbol", symbol).
		Str("type", sig.Type).
		Float64("strength", sig.Strength).
		Str("regime", snap.Regime).
		Bool("notified", notified).
		Str("gate", verdict.Reason).
		Msg("symbol evaluated")

	return outcome{evaluated: true, notified: notified, reason: "evaluated"}
}

func (e *Engine) lockFor(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[symbol] = lock
	}
	return lock
}

// noopRegisterer lets the engine run without a metrics backend.
type noopRegisterer struct{}

func (noopRegisterer) Register(prometheus.Collector) error  { return nil }
func (noopRegisterer) MustRegister(...prometheus.Collector) {}
func (noopRegisterer) Unregister(prometheus.Collector) bool { return true }
