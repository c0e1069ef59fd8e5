package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpulse/quantpulse/internal/gate"
	"github.com/quantpulse/quantpulse/internal/guard"
	"github.com/quantpulse/quantpulse/internal/marketdata"
	"github.com/quantpulse/quantpulse/internal/persistence"
	"github.com/quantpulse/quantpulse/internal/regime"
	"github.com/quantpulse/quantpulse/internal/strategy"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// fixedStrategy returns a canned result regardless of input.
type fixedStrategy struct {
	name   string
	result strategy.Result
}

func (s fixedStrategy) Name() string { return s.name }
func (s fixedStrategy) Evaluate(in strategy.Input, reg regime.Regime) strategy.Result {
	return s.result
}

type fixedResolver struct{ s strategy.Strategy }

func (r fixedResolver) Resolve(symbol string) strategy.Strategy { return r.s }

type recordingNotifier struct {
	received []persistence.Signal
}

func (n *recordingNotifier) Notify(ctx context.Context, sig persistence.Signal) error {
	n.received = append(n.received, sig)
	return nil
}

// seedBars stores count 15m bars ending at end with flat closes.
func seedBars(t *testing.T, repo *persistence.MemoryRepository, symbol string, count int, end time.Time) {
	t.Helper()
	bars := make([]persistence.PriceBar, count)
	for i := 0; i < count; i++ {
		ts := end.Add(-time.Duration(count-1-i) * 15 * time.Minute)
		bars[i] = persistence.PriceBar{
			Symbol: symbol, Timestamp: ts,
			Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000,
		}
	}
	_, err := repo.UpsertBars(context.Background(), bars)
	require.NoError(t, err)
}

func buyStrategy() fixedStrategy {
	return fixedStrategy{
		name: "momentum_v1",
		result: strategy.Result{
			Type:      strategy.Buy,
			Strength:  80,
			Reasoning: []string{"test buy"},
		},
	}
}

func newTestEngine(repo *persistence.MemoryRepository, symbols []string, strat strategy.Strategy, notifier gate.Notifier, now time.Time) *Engine {
	e := New(Config{
		Symbols:   symbols,
		Timeframe: "15m",
		Workers:   4,
	}, Deps{
		Repo:     repo.Repository(),
		Provider: marketdata.NewRepoProvider(repo),
		Registry: fixedResolver{s: strat},
		Guard:    guard.New(repo, 8*time.Hour, 40),
		Gate:     gate.New(repo, notifier, 60),
	})
	e.nowFn = func() time.Time { return now }
	return e
}

func TestRunTick_RerunNeverDuplicatesSignals(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	seedBars(t, repo, "BTC-USD", 40, t0)
	seedBars(t, repo, "ETH-USD", 40, t0)

	notifier := &recordingNotifier{}
	e := newTestEngine(repo, []string{"BTC-USD", "ETH-USD"}, buyStrategy(), notifier, t0)

	first := e.RunTick(context.Background())
	assert.Equal(t, 2, first.Evaluated)
	assert.Equal(t, 2, first.Notified)
	assert.Equal(t, 2, repo.SignalCount())

	// Replay of the same bars: same keys, no new rows, no re-notify.
	second := e.RunTick(context.Background())
	assert.Equal(t, 2, second.Evaluated)
	assert.Equal(t, 0, second.Notified)
	assert.Equal(t, 2, repo.SignalCount())
	assert.Len(t, notifier.received, 2)
}

func TestRunTick_InsufficientHistoryIsIsolated(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	seedBars(t, repo, "BTC-USD", 40, t0)
	seedBars(t, repo, "NEW-USD", 5, t0) // freshly listed, not enough bars

	notifier := &recordingNotifier{}
	e := newTestEngine(repo, []string{"BTC-USD", "NEW-USD"}, buyStrategy(), notifier, t0)

	report := e.RunTick(context.Background())
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Errors, "insufficient history is a skip, not an error")
	assert.Equal(t, 1, repo.SignalCount())
}

func TestRunTick_CooldownSuppressesThenReleases(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	seedBars(t, repo, "BTC-USD", 40, t0)
	notifier := &recordingNotifier{}

	// T0: strong BUY notifies.
	e := newTestEngine(repo, []string{"BTC-USD"}, buyStrategy(), notifier, t0)
	report := e.RunTick(context.Background())
	require.Equal(t, 1, report.Notified)

	// T0+1h: a new bar arrives, indicators recompute and the signal
	// row is stored, but the gate stays shut.
	seedBars(t, repo, "BTC-USD", 40, t0.Add(time.Hour))
	e = newTestEngine(repo, []string{"BTC-USD"}, buyStrategy(), notifier, t0.Add(time.Hour))
	report = e.RunTick(context.Background())
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 0, report.Notified)
	assert.Equal(t, 2, repo.SignalCount(), "signal stored even while in cooldown")

	// T0+9h: window elapsed, eligible again.
	seedBars(t, repo, "BTC-USD", 40, t0.Add(9*time.Hour))
	e = newTestEngine(repo, []string{"BTC-USD"}, buyStrategy(), notifier, t0.Add(9*time.Hour))
	report = e.RunTick(context.Background())
	assert.Equal(t, 1, report.Notified)
	assert.Len(t, notifier.received, 2)
}

func TestRunTick_HoldIsStoredButNeverNotified(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	seedBars(t, repo, "BTC-USD", 40, t0)

	hold := fixedStrategy{
		name:   "hold_v1",
		result: strategy.Result{Type: strategy.Hold, Strength: 80, Reasoning: []string{"hold"}},
	}
	notifier := &recordingNotifier{}
	e := newTestEngine(repo, []string{"BTC-USD"}, hold, notifier, t0)

	report := e.RunTick(context.Background())
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 0, report.Notified)
	assert.Equal(t, 1, repo.SignalCount())
	assert.Empty(t, notifier.received)
}

// slowProvider delays each window read and honors context
// cancellation, like a real upstream client would.
type slowProvider struct {
	inner marketdata.Provider
	delay time.Duration
}

func (p *slowProvider) Bars(ctx context.Context, symbol string, limit int) ([]persistence.PriceBar, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.delay):
	}
	return p.inner.Bars(ctx, symbol, limit)
}

func TestRunTick_DeadlineLetsInFlightSymbolFinish(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	seedBars(t, repo, "BTC-USD", 40, t0)
	seedBars(t, repo, "ETH-USD", 40, t0)

	notifier := &recordingNotifier{}
	slow := &slowProvider{inner: marketdata.NewRepoProvider(repo), delay: 80 * time.Millisecond}

	e := New(Config{
		Symbols:     []string{"BTC-USD", "ETH-USD"},
		Timeframe:   "15m",
		Workers:     1,
		TickTimeout: 30 * time.Millisecond,
	}, Deps{
		Repo:     repo.Repository(),
		Provider: slow,
		Registry: fixedResolver{s: buyStrategy()},
		Guard:    guard.New(repo, 8*time.Hour, 40),
		Gate:     gate.New(repo, notifier, 60),
	})

	report := e.RunTick(context.Background())

	// The first symbol was dispatched before the deadline and must run
	// its pipeline to completion even though the deadline expired while
	// the provider was still reading.
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 0, report.Errors, "an in-flight symbol is never cancelled into an error")
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 1, repo.SignalCount())
	assert.Len(t, notifier.received, 1)
}

func TestRunTick_ExpiredContextDefersAllSymbols(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	seedBars(t, repo, "BTC-USD", 40, t0)
	seedBars(t, repo, "ETH-USD", 40, t0)

	e := newTestEngine(repo, []string{"BTC-USD", "ETH-USD"}, buyStrategy(), &recordingNotifier{}, t0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := e.RunTick(ctx)
	assert.Equal(t, 2, report.Deferred)
	assert.Equal(t, 0, report.Evaluated)
	assert.Equal(t, 0, repo.SignalCount(), "a deferred tick is a correct partial outcome")
}

func TestRunTick_SnapshotPersistedWithRegime(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	seedBars(t, repo, "BTC-USD", 40, t0)

	e := newTestEngine(repo, []string{"BTC-USD"}, buyStrategy(), &recordingNotifier{}, t0)
	e.RunTick(context.Background())

	snap, err := repo.Latest(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, t0, snap.Timestamp)
	assert.Equal(t, 100.0, snap.Price)
	// A flat window has zero trend strength: ranging regime.
	assert.Equal(t, "range", snap.Regime)
}

func TestRunTick_SignalRowCarriesKeyAndPrice(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	seedBars(t, repo, "BTC-USD", 40, t0)

	e := newTestEngine(repo, []string{"BTC-USD"}, buyStrategy(), &recordingNotifier{}, t0)
	e.RunTick(context.Background())

	signals, err := repo.ListBySymbol(context.Background(), "BTC-USD", 10)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, guard.Key("BTC-USD", "15m", "momentum_v1", t0), sig.IdempotencyKey)
	assert.Equal(t, 100.0, sig.PriceAtSignal)
	assert.Equal(t, "BUY", sig.Type)
	assert.Equal(t, []string{"test buy"}, sig.Reasoning)
}
