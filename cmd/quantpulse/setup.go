package main

import (
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/quantpulse/quantpulse/internal/cache"
	"github.com/quantpulse/quantpulse/internal/config"
	"github.com/quantpulse/quantpulse/internal/engine"
	"github.com/quantpulse/quantpulse/internal/gate"
	"github.com/quantpulse/quantpulse/internal/guard"
	"github.com/quantpulse/quantpulse/internal/marketdata"
	"github.com/quantpulse/quantpulse/internal/persistence"
	"github.com/quantpulse/quantpulse/internal/persistence/postgres"
	"github.com/quantpulse/quantpulse/internal/strategy"
	"github.com/quantpulse/quantpulse/internal/telemetry"
)

// runtime bundles everything a command needs after wiring.
type runtime struct {
	cfg      *config.Config
	engine   *engine.Engine
	registry *prometheus.Registry
	db       *sqlx.DB // nil when running on the in-memory repository
}

func (r *runtime) close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// resolveSymbols applies the per-run override list when present,
// otherwise the configured list stands.
func resolveSymbols(configured, override []string) []string {
	if len(override) > 0 {
		return override
	}
	return configured
}

// buildRuntime wires the engine from configuration. The registry is
// resolved here so an invalid strategy name aborts before any tick.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setLogLevel(cfg.LogLevel)

	cfg.Symbols = resolveSymbols(cfg.Symbols, symbolOverride)
	if len(symbolOverride) > 0 {
		log.Info().Strs("symbols", cfg.Symbols).Msg("symbol list overridden for this run")
	}

	var (
		repo persistence.Repository
		db   *sqlx.DB
	)
	if cfg.Database.URL != "" {
		db, err = postgres.Connect(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		timeout := cfg.DBTimeout()
		repo = persistence.Repository{
			Bars:      postgres.NewBarsRepo(db, timeout),
			Snapshots: postgres.NewSnapshotsRepo(db, timeout),
			Signals:   postgres.NewSignalsRepo(db, timeout),
		}
		log.Info().Msg("using postgres persistence")
	} else {
		repo = persistence.NewMemoryRepository().Repository()
		log.Warn().Msg("no database configured, using in-memory persistence")
	}

	registry, err := strategy.NewRegistry(cfg.Strategy, cfg.AssetClasses)
	if err != nil {
		return nil, fmt.Errorf("strategy registry resolution failed: %w", err)
	}

	var snapshots *cache.SnapshotCache
	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		snapshots = cache.New(client, cfg.CacheTTL())
		log.Info().Str("addr", cfg.Redis.Addr).Msg("snapshot cache enabled")
	}

	promRegistry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(promRegistry)

	eng := engine.New(engine.Config{
		Symbols:     cfg.Symbols,
		Timeframe:   cfg.Tick.Timeframe,
		Workers:     cfg.Tick.Workers,
		TickTimeout: cfg.TickTimeout(),
		WindowBars:  cfg.Tick.WindowBars,
		Indicator:   cfg.Indicators,
		Regime:      cfg.Regime,
	}, engine.Deps{
		Repo:      repo,
		Provider:  marketdata.NewRepoProvider(repo.Bars),
		Registry:  registry,
		Guard:     guard.New(repo.Signals, cfg.Cooldown(), cfg.StrengthFloor),
		Gate:      gate.New(repo.Signals, gate.LogNotifier{}, cfg.NotifyThreshold),
		Snapshots: snapshots,
		Metrics:   metrics,
	})

	return &runtime{cfg: cfg, engine: eng, registry: promRegistry, db: db}, nil
}
