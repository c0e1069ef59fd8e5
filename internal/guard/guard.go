// Package guard enforces the two spam controls on signal output: the
// deterministic idempotency key that makes replayed evaluations
// harmless, and the cooldown window that bounds how often a
// (symbol, rule) pair may notify.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/quantpulse/quantpulse/internal/persistence"
	"github.com/quantpulse/quantpulse/internal/strategy"
)

// Key builds the deterministic idempotency key for one evaluated bar:
// symbol:timeframe:rule:RFC3339(ts). Re-running the same bar always
// reproduces the same key, so the insert-if-absent contract collapses
// replays into a single row.
func Key(symbol, timeframe, rule string, ts time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", symbol, timeframe, rule, ts.UTC().Format(time.RFC3339))
}

// Verdict is the cooldown decision for one signal.
type Verdict struct {
	Eligible  bool
	Reason    string
	SinceLast time.Duration // elapsed since last notified signal, 0 when none
}

// Guard gates notification eligibility. The strength floor and the
// cooldown window both apply; the underlying signal row is stored
// either way so dashboards keep updating during cooldown.
type Guard struct {
	signals persistence.SignalsRepo
	window  time.Duration
	floor   float64
}

// New builds a guard over the signals repo. window <= 0 falls back to
// the 8h default.
func New(signals persistence.SignalsRepo, window time.Duration, floor float64) *Guard {
	if window <= 0 {
		window = 8 * time.Hour
	}
	return &Guard{signals: signals, window: window, floor: floor}
}

// Check decides whether sig may be handed to the notification gate.
// HOLD signals and sub-floor strength never emit; otherwise the most
// recent notified signal for (symbol, rule) sets the cooldown clock.
//
// The clock is anchored to the prior signal's bar timestamp, not the
// wall-clock moment it was delivered. Replaying a backlog therefore
// reproduces the same verdicts as live processing; a signal notified
// late counts from its bar, so the effective spacing between deliveries
// can be shorter than the window in that case.
func (g *Guard) Check(ctx context.Context, sig persistence.Signal, now time.Time) (Verdict, error) {
	if strategy.Type(sig.Type) == strategy.Hold {
		return Verdict{Eligible: false, Reason: "hold signal"}, nil
	}
	if sig.Strength < g.floor {
		return Verdict{
			Eligible: false,
			Reason:   fmt.Sprintf("strength %.1f below floor %.1f", sig.Strength, g.floor),
		}, nil
	}

	prior, err := g.signals.LatestNotified(ctx, sig.Symbol, sig.RuleVersion, now.Add(-g.window))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to read cooldown state: %w", err)
	}
	if prior != nil {
		elapsed := now.Sub(prior.Timestamp)
		return Verdict{
			Eligible:  false,
			Reason:    fmt.Sprintf("cooldown active, %s remaining", (g.window - elapsed).Round(time.Minute)),
			SinceLast: elapsed,
		}, nil
	}

	return Verdict{Eligible: true, Reason: "ok"}, nil
}

// Window reports the configured cooldown window.
func (g *Guard) Window() time.Duration { return g.window }
