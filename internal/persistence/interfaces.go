package persistence

import (
	"context"
	"time"
)

// PriceBar is a single OHLCV bar, unique per (symbol, ts).
// Bars are immutable once stored; a re-fetch of the same timestamp
// upsert-corrects the existing row.
type PriceBar struct {
	Symbol    string    `json:"symbol" db:"symbol"`
	Timestamp time.Time `json:"ts" db:"ts"`
	Open      float64   `json:"open" db:"open"`
	High      float64   `json:"high" db:"high"`
	Low       float64   `json:"low" db:"low"`
	Close     float64   `json:"close" db:"close"`
	Volume    float64   `json:"volume" db:"volume"`
}

// IndicatorSnapshot holds the indicator state for one symbol at one bar
// timestamp. Values are rounded to 6 decimals before persisting so a
// replay of the same window produces a bit-identical row.
type IndicatorSnapshot struct {
	Symbol        string    `json:"symbol" db:"symbol"`
	Timestamp     time.Time `json:"ts" db:"ts"`
	Price         float64   `json:"price" db:"price"`
	RSI           float64   `json:"rsi" db:"rsi"`
	EMAFast       float64   `json:"ema_fast" db:"ema_fast"`
	EMASlow       float64   `json:"ema_slow" db:"ema_slow"`
	MACDHist      float64   `json:"macd_hist" db:"macd_hist"`
	TrendStrength float64   `json:"trend_strength" db:"trend_strength"`
	Regime        string    `json:"regime" db:"regime"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Signal is one persisted evaluation outcome. Rows are append-only and
// keyed by IdempotencyKey; a duplicate insert is a silent no-op.
type Signal struct {
	ID             int64     `json:"id" db:"id"`
	Symbol         string    `json:"symbol" db:"symbol"`
	Timestamp      time.Time `json:"ts" db:"ts"`
	Type           string    `json:"signal_type" db:"signal_type"`
	Strength       float64   `json:"strength" db:"strength"`
	Reasoning      []string  `json:"reasoning" db:"-"`
	RuleVersion    string    `json:"rule_version" db:"rule_version"`
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	PriceAtSignal  float64   `json:"price_at_signal" db:"price_at_signal"`
	Notified       bool      `json:"notified" db:"notified"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// BarsRepo provides price bar persistence.
type BarsRepo interface {
	// UpsertBars inserts or corrects bars keyed by (symbol, ts) and
	// returns the number of rows written.
	UpsertBars(ctx context.Context, bars []PriceBar) (int, error)

	// Window returns up to limit most recent bars for symbol in
	// ascending timestamp order.
	Window(ctx context.Context, symbol string, limit int) ([]PriceBar, error)
}

// SnapshotsRepo provides indicator snapshot persistence with
// last-write-wins upsert semantics.
type SnapshotsRepo interface {
	// Upsert inserts or replaces the snapshot for (symbol, ts).
	Upsert(ctx context.Context, snap IndicatorSnapshot) error

	// Latest returns the most recent snapshot for symbol, or nil when
	// none exists.
	Latest(ctx context.Context, symbol string) (*IndicatorSnapshot, error)
}

// SignalsRepo provides append-only signal persistence. InsertIfAbsent
// and MarkNotified are the two idempotency layers the engine relies on.
type SignalsRepo interface {
	// InsertIfAbsent inserts the signal unless a row with the same
	// idempotency key already exists. Returns false when the row was
	// already present; that outcome is expected on replay, not an error.
	InsertIfAbsent(ctx context.Context, sig Signal) (bool, error)

	// MarkNotified flips the notified flag exactly once. Returns false
	// when the signal was already marked, so a retried gate evaluation
	// cannot hand the same signal off twice.
	MarkNotified(ctx context.Context, idempotencyKey string) (bool, error)

	// LatestNotified returns the most recent notified signal for
	// (symbol, rule) with ts >= since, or nil. A zero since means no
	// lower bound.
	LatestNotified(ctx context.Context, symbol, rule string, since time.Time) (*Signal, error)

	// ListBySymbol returns up to limit most recent signals for symbol,
	// newest first.
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]Signal, error)
}

// Repository aggregates the persistence interfaces the engine needs.
type Repository struct {
	Bars      BarsRepo
	Snapshots SnapshotsRepo
	Signals   SignalsRepo
}
