// Package gate is the last stop before the external notifier. It
// filters guard-approved signals by strength threshold and marks the
// row notified before hand-off, so a retried gate evaluation can never
// notify the same signal twice.
package gate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quantpulse/quantpulse/internal/guard"
	"github.com/quantpulse/quantpulse/internal/persistence"
)

// Notifier receives signals that cleared the gate. Delivery guarantees
// are the notifier's responsibility; the gate only guarantees at most
// one hand-off per signal.
type Notifier interface {
	Notify(ctx context.Context, sig persistence.Signal) error
}

// LogNotifier writes gated signals to the structured log. Default sink
// when no delivery channel is wired.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, sig persistence.Signal) error {
	log.Info().
		Str("symbol", sig.Symbol).
		Str("type", sig.Type).
		Float64("strength", sig.Strength).
		Str("rule", sig.RuleVersion).
		Time("ts", sig.Timestamp).
		Msg("strong signal")
	return nil
}

// Gate applies the notification strength threshold and the
// notified-flag idempotency layer.
type Gate struct {
	signals   persistence.SignalsRepo
	notifier  Notifier
	threshold float64
}

// New builds a gate. threshold <= 0 falls back to 60.
func New(signals persistence.SignalsRepo, notifier Notifier, threshold float64) *Gate {
	if threshold <= 0 {
		threshold = 60
	}
	return &Gate{signals: signals, notifier: notifier, threshold: threshold}
}

// Offer forwards sig to the notifier when the guard verdict allows it
// and strength clears the threshold. Returns whether a hand-off
// happened. The notified flag is flipped before the hand-off; if the
// flip reports the row as already notified, the offer is a no-op.
func (g *Gate) Offer(ctx context.Context, sig persistence.Signal, verdict guard.Verdict) (bool, error) {
	if !verdict.Eligible {
		return false, nil
	}
	if sig.Strength < g.threshold {
		return false, nil
	}

	first, err := g.signals.MarkNotified(ctx, sig.IdempotencyKey)
	if err != nil {
		return false, fmt.Errorf("failed to mark signal notified: %w", err)
	}
	if !first {
		log.Debug().Str("key", sig.IdempotencyKey).Msg("signal already notified, skipping hand-off")
		return false, nil
	}

	sig.Notified = true
	if err := g.notifier.Notify(ctx, sig); err != nil {
		// The row stays marked: at-most-once hand-off beats re-delivery.
		log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("notifier hand-off failed")
	}

	return true, nil
}

// Threshold reports the configured notification threshold.
func (g *Gate) Threshold() float64 { return g.threshold }
