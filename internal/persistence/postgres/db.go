// Package postgres implements the persistence interfaces on PostgreSQL
// via sqlx. Schema management lives outside this module; the repos
// assume the price_bars, indicator_snapshots and signals tables exist.
package postgres

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens a pooled PostgreSQL connection and verifies it.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
