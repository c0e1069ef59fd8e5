package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantpulse/quantpulse/internal/persistence"
)

// signalsRepo implements SignalsRepo for PostgreSQL.
type signalsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalsRepo creates a PostgreSQL signal repository.
func NewSignalsRepo(db *sqlx.DB, timeout time.Duration) persistence.SignalsRepo {
	return &signalsRepo{db: db, timeout: timeout}
}

// signalRow mirrors the signals table; reasoning travels as JSONB.
type signalRow struct {
	ID             int64     `db:"id"`
	Symbol         string    `db:"symbol"`
	Timestamp      time.Time `db:"ts"`
	Type           string    `db:"signal_type"`
	Strength       float64   `db:"strength"`
	Reasoning      []byte    `db:"reasoning"`
	RuleVersion    string    `db:"rule_version"`
	IdempotencyKey string    `db:"idempotency_key"`
	PriceAtSignal  float64   `db:"price_at_signal"`
	Notified       bool      `db:"notified"`
	CreatedAt      time.Time `db:"created_at"`
}

func (row signalRow) toSignal() (persistence.Signal, error) {
	sig := persistence.Signal{
		ID:             row.ID,
		Symbol:         row.Symbol,
		Timestamp:      row.Timestamp,
		Type:           row.Type,
		Strength:       row.Strength,
		RuleVersion:    row.RuleVersion,
		IdempotencyKey: row.IdempotencyKey,
		PriceAtSignal:  row.PriceAtSignal,
		Notified:       row.Notified,
		CreatedAt:      row.CreatedAt,
	}
	if len(row.Reasoning) > 0 {
		if err := json.Unmarshal(row.Reasoning, &sig.Reasoning); err != nil {
			return sig, fmt.Errorf("failed to unmarshal reasoning: %w", err)
		}
	}
	return sig, nil
}

// InsertIfAbsent appends the signal row unless its idempotency key is
// already present. ON CONFLICT DO NOTHING makes a replayed insert a
// silent no-op rather than a constraint error.
func (r *signalsRepo) InsertIfAbsent(ctx context.Context, sig persistence.Signal) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reasoningJSON, err := json.Marshal(sig.Reasoning)
	if err != nil {
		return false, fmt.Errorf("failed to marshal reasoning: %w", err)
	}

	query := `
		INSERT INTO signals
		(symbol, ts, signal_type, strength, reasoning, rule_version, idempotency_key, price_at_signal, notified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
		ON CONFLICT (idempotency_key) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		sig.Symbol, sig.Timestamp.UTC(), sig.Type, sig.Strength,
		reasoningJSON, sig.RuleVersion, sig.IdempotencyKey, sig.PriceAtSignal)
	if err != nil {
		return false, fmt.Errorf("failed to insert signal: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return rows > 0, nil
}

// MarkNotified flips the notified flag exactly once per key.
func (r *signalsRepo) MarkNotified(ctx context.Context, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE signals
		SET notified = true
		WHERE idempotency_key = $1 AND notified = false`

	res, err := r.db.ExecContext(ctx, query, idempotencyKey)
	if err != nil {
		return false, fmt.Errorf("failed to mark signal notified: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}

	return rows > 0, nil
}

// LatestNotified returns the most recent notified signal for
// (symbol, rule) at or after since. Zero since means no lower bound.
func (r *signalsRepo) LatestNotified(ctx context.Context, symbol, rule string, since time.Time) (*persistence.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, ts, signal_type, strength, reasoning, rule_version,
		       idempotency_key, price_at_signal, notified, created_at
		FROM signals
		WHERE symbol = $1 AND rule_version = $2 AND notified = true`
	args := []interface{}{symbol, rule}

	if !since.IsZero() {
		query += ` AND ts >= $3`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY ts DESC LIMIT 1`

	var row signalRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest notified signal: %w", err)
	}

	sig, err := row.toSignal()
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// ListBySymbol returns the limit most recent signals, newest first.
func (r *signalsRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]persistence.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, ts, signal_type, strength, reasoning, rule_version,
		       idempotency_key, price_at_signal, notified, created_at
		FROM signals
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`

	var rows []signalRow
	if err := r.db.SelectContext(ctx, &rows, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}

	out := make([]persistence.Signal, 0, len(rows))
	for _, row := range rows {
		sig, err := row.toSignal()
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}

	return out, nil
}
