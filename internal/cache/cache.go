// Package cache keeps the latest indicator snapshot per symbol in
// Redis for cheap dashboard reads. The cache is write-behind and
// advisory: a miss or a Redis failure degrades to repository reads,
// never to a tick failure.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/quantpulse/quantpulse/internal/persistence"
)

const keyPrefix = "quantpulse:snapshot:"

// SnapshotCache is a Redis-backed snapshot cache.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a snapshot cache. ttl <= 0 falls back to 30 minutes.
func New(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Put stores the snapshot under its symbol with the configured TTL.
func (c *SnapshotCache) Put(ctx context.Context, snap persistence.IndicatorSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+snap.Symbol, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	return nil
}

// Get returns the cached snapshot for symbol, or nil on a miss.
func (c *SnapshotCache) Get(ctx context.Context, symbol string) (*persistence.IndicatorSnapshot, error) {
	payload, err := c.client.Get(ctx, keyPrefix+symbol).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached snapshot: %w", err)
	}

	var snap persistence.IndicatorSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached snapshot: %w", err)
	}

	return &snap, nil
}
