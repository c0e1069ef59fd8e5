// Package marketdata defines the input boundary for price history. The
// engine consumes already-fetched bars; a Provider only has to produce
// an ascending window per symbol. Upstream failures map to
// ErrProviderUnavailable and cost the symbol one tick, nothing more.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/quantpulse/quantpulse/internal/persistence"
)

// ErrProviderUnavailable reports an upstream fetch failure or an open
// circuit. The symbol is skipped this tick and prior computations stay
// visible.
var ErrProviderUnavailable = errors.New("marketdata: provider unavailable")

// Provider supplies the most recent price bars for a symbol in
// ascending timestamp order.
type Provider interface {
	Bars(ctx context.Context, symbol string, limit int) ([]persistence.PriceBar, error)
}

// RepoProvider serves windows straight from persistence. Default wiring
// when ingestion happens out of process.
type RepoProvider struct {
	bars persistence.BarsRepo
}

// NewRepoProvider builds a persistence-backed provider.
func NewRepoProvider(bars persistence.BarsRepo) *RepoProvider {
	return &RepoProvider{bars: bars}
}

func (p *RepoProvider) Bars(ctx context.Context, symbol string, limit int) ([]persistence.PriceBar, error) {
	window, err := p.bars.Window(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read bar window: %w", err)
	}
	return window, nil
}

// Resilient wraps an upstream provider with token-bucket rate limiting
// and a circuit breaker. All failure modes surface as
// ErrProviderUnavailable so the engine has one skip path.
type Resilient struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewResilient builds the resilient wrapper. rps bounds upstream
// request rate; the breaker opens after 5 consecutive failures.
func NewResilient(inner Provider, rps float64, burst int) *Resilient {
	settings := gobreaker.Settings{
		Name: "marketdata",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Resilient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (r *Resilient) Bars(ctx context.Context, symbol string, limit int) ([]persistence.PriceBar, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Bars(ctx, symbol, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return out.([]persistence.PriceBar), nil
}
