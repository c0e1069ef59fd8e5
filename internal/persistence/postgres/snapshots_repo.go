package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantpulse/quantpulse/internal/persistence"
)

// snapshotsRepo implements SnapshotsRepo for PostgreSQL.
type snapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotsRepo creates a PostgreSQL indicator snapshot repository.
func NewSnapshotsRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotsRepo {
	return &snapshotsRepo{db: db, timeout: timeout}
}

// Upsert writes the snapshot for (symbol, ts) with last-write-wins
// semantics. Safe under replay because snapshot computation is
// deterministic on the same window.
func (r *snapshotsRepo) Upsert(ctx context.Context, snap persistence.IndicatorSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO indicator_snapshots
		(symbol, ts, price, rsi, ema_fast, ema_slow, macd_hist, trend_strength, regime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, ts) DO UPDATE SET
			price = EXCLUDED.price,
			rsi = EXCLUDED.rsi,
			ema_fast = EXCLUDED.ema_fast,
			ema_slow = EXCLUDED.ema_slow,
			macd_hist = EXCLUDED.macd_hist,
			trend_strength = EXCLUDED.trend_strength,
			regime = EXCLUDED.regime`

	if _, err := r.db.ExecContext(ctx, query,
		snap.Symbol, snap.Timestamp.UTC(), snap.Price, snap.RSI,
		snap.EMAFast, snap.EMASlow, snap.MACDHist, snap.TrendStrength, snap.Regime); err != nil {
		return fmt.Errorf("failed to upsert indicator snapshot: %w", err)
	}

	return nil
}

// Latest returns the most recent snapshot for symbol, or nil.
func (r *snapshotsRepo) Latest(ctx context.Context, symbol string) (*persistence.IndicatorSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT symbol, ts, price, rsi, ema_fast, ema_slow, macd_hist, trend_strength, regime, created_at
		FROM indicator_snapshots
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT 1`

	var snap persistence.IndicatorSnapshot
	if err := r.db.GetContext(ctx, &snap, query, symbol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	return &snap, nil
}
