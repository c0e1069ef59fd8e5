package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestMemory_UpsertBarsCorrectsInPlace(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.UpsertBars(ctx, []PriceBar{{Symbol: "BTC-USD", Timestamp: t0, Close: 100}})
	require.NoError(t, err)
	_, err = repo.UpsertBars(ctx, []PriceBar{{Symbol: "BTC-USD", Timestamp: t0, Close: 101}})
	require.NoError(t, err)

	bars, err := repo.Window(ctx, "BTC-USD", 10)
	require.NoError(t, err)
	require.Len(t, bars, 1, "same timestamp corrects, never duplicates")
	assert.Equal(t, 101.0, bars[0].Close)
}

func TestMemory_WindowAscendingAndLimited(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	for i := 0; i < 5; i++ {
		_, err := repo.UpsertBars(ctx, []PriceBar{{
			Symbol:    "BTC-USD",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Close:     float64(100 + i),
		}})
		require.NoError(t, err)
	}

	bars, err := repo.Window(ctx, "BTC-USD", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 102.0, bars[0].Close, "limit keeps the most recent bars")
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
	assert.True(t, bars[1].Timestamp.Before(bars[2].Timestamp))
}

func TestMemory_InsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	sig := Signal{Symbol: "BTC-USD", Timestamp: t0, Type: "BUY", RuleVersion: "momentum_v1", IdempotencyKey: "k1"}

	inserted, err := repo.InsertIfAbsent(ctx, sig)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, sig)
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate key is a silent no-op")
	assert.Equal(t, 1, repo.SignalCount())
}

func TestMemory_MarkNotifiedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	sig := Signal{Symbol: "BTC-USD", Timestamp: t0, Type: "BUY", RuleVersion: "momentum_v1", IdempotencyKey: "k1"}
	_, err := repo.InsertIfAbsent(ctx, sig)
	require.NoError(t, err)

	first, err := repo.MarkNotified(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkNotified(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, second)

	missing, err := repo.MarkNotified(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestMemory_LatestNotifiedFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	for i, key := range []string{"k1", "k2", "k3"} {
		sig := Signal{
			Symbol:         "BTC-USD",
			Timestamp:      t0.Add(time.Duration(i) * time.Hour),
			Type:           "BUY",
			RuleVersion:    "momentum_v1",
			IdempotencyKey: key,
		}
		_, err := repo.InsertIfAbsent(ctx, sig)
		require.NoError(t, err)
	}
	_, err := repo.MarkNotified(ctx, "k1")
	require.NoError(t, err)
	_, err = repo.MarkNotified(ctx, "k2")
	require.NoError(t, err)
	// k3 stays unnotified and must be invisible here.

	latest, err := repo.LatestNotified(ctx, "BTC-USD", "momentum_v1", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "k2", latest.IdempotencyKey)

	// Lower bound excludes older rows.
	latest, err = repo.LatestNotified(ctx, "BTC-USD", "momentum_v1", t0.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, latest)

	// Other rule: nothing.
	latest, err = repo.LatestNotified(ctx, "BTC-USD", "mean_reversion_v1", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMemory_SnapshotUpsertAndLatest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Upsert(ctx, IndicatorSnapshot{Symbol: "BTC-USD", Timestamp: t0, RSI: 40}))
	require.NoError(t, repo.Upsert(ctx, IndicatorSnapshot{Symbol: "BTC-USD", Timestamp: t0, RSI: 45}))
	require.NoError(t, repo.Upsert(ctx, IndicatorSnapshot{Symbol: "BTC-USD", Timestamp: t0.Add(time.Hour), RSI: 50}))

	latest, err := repo.Latest(ctx, "BTC-USD")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 50.0, latest.RSI)

	none, err := repo.Latest(ctx, "ETH-USD")
	require.NoError(t, err)
	assert.Nil(t, none)
}
