package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantpulse/quantpulse/internal/persistence"
)

// barsRepo implements BarsRepo for PostgreSQL.
type barsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBarsRepo creates a PostgreSQL price bar repository.
func NewBarsRepo(db *sqlx.DB, timeout time.Duration) persistence.BarsRepo {
	return &barsRepo{db: db, timeout: timeout}
}

// UpsertBars writes bars keyed by (symbol, ts). Re-ingesting the same
// timestamp corrects the row in place.
func (r *barsRepo) UpsertBars(ctx context.Context, bars []persistence.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bars tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO price_bars (symbol, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, ts) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`

	for _, b := range bars {
		if _, err := tx.ExecContext(ctx, query,
			b.Symbol, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return 0, fmt.Errorf("failed to upsert bar %s@%s: %w", b.Symbol, b.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bars tx: %w", err)
	}

	return len(bars), nil
}

// Window returns the limit most recent bars for symbol in ascending
// timestamp order.
func (r *barsRepo) Window(ctx context.Context, symbol string, limit int) ([]persistence.PriceBar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT symbol, ts, open, high, low, close, volume
		FROM price_bars
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`

	var bars []persistence.PriceBar
	if err := r.db.SelectContext(ctx, &bars, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("failed to query bar window: %w", err)
	}

	// Reverse into ascending order for indicator math.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}
