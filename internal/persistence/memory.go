package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used by tests and by the
// CLI when no database is configured. It honors the same contracts as
// the postgres implementation, including idempotent signal inserts.
type MemoryRepository struct {
	mu        sync.RWMutex
	bars      map[string]map[time.Time]PriceBar
	snapshots map[string]map[time.Time]IndicatorSnapshot
	signals   []Signal
	nextID    int64
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bars:      make(map[string]map[time.Time]PriceBar),
		snapshots: make(map[string]map[time.Time]IndicatorSnapshot),
		nextID:    1,
	}
}

// Repository returns the aggregate view backed by this store.
func (m *MemoryRepository) Repository() Repository {
	return Repository{Bars: m, Snapshots: m, Signals: m}
}

func (m *MemoryRepository) UpsertBars(ctx context.Context, bars []PriceBar) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		byTS, ok := m.bars[b.Symbol]
		if !ok {
			byTS = make(map[time.Time]PriceBar)
			m.bars[b.Symbol] = byTS
		}
		byTS[b.Timestamp.UTC()] = b
	}
	return len(bars), nil
}

func (m *MemoryRepository) Window(ctx context.Context, symbol string, limit int) ([]PriceBar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byTS := m.bars[symbol]
	out := make([]PriceBar, 0, len(byTS))
	for _, b := range byTS {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryRepository) Upsert(ctx context.Context, snap IndicatorSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTS, ok := m.snapshots[snap.Symbol]
	if !ok {
		byTS = make(map[time.Time]IndicatorSnapshot)
		m.snapshots[snap.Symbol] = byTS
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	byTS[snap.Timestamp.UTC()] = snap
	return nil
}

func (m *MemoryRepository) Latest(ctx context.Context, symbol string) (*IndicatorSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *IndicatorSnapshot
	for _, s := range m.snapshots[symbol] {
		s := s
		if latest == nil || s.Timestamp.After(latest.Timestamp) {
			latest = &s
		}
	}
	return latest, nil
}

func (m *MemoryRepository) InsertIfAbsent(ctx context.Context, sig Signal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.signals {
		if existing.IdempotencyKey == sig.IdempotencyKey {
			return false, nil
		}
	}
	sig.ID = m.nextID
	m.nextID++
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	m.signals = append(m.signals, sig)
	return true, nil
}

func (m *MemoryRepository) MarkNotified(ctx context.Context, idempotencyKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.signals {
		if m.signals[i].IdempotencyKey == idempotencyKey {
			if m.signals[i].Notified {
				return false, nil
			}
			m.signals[i].Notified = true
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) LatestNotified(ctx context.Context, symbol, rule string, since time.Time) (*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *Signal
	for i := range m.signals {
		s := m.signals[i]
		if s.Symbol != symbol || s.RuleVersion != rule || !s.Notified {
			continue
		}
		if !since.IsZero() && s.Timestamp.Before(since) {
			continue
		}
		if latest == nil || s.Timestamp.After(latest.Timestamp) {
			latest = &s
		}
	}
	return latest, nil
}

func (m *MemoryRepository) ListBySymbol(ctx context.Context, symbol string, limit int) ([]Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Signal, 0)
	for _, s := range m.signals {
		if s.Symbol == symbol {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SignalCount reports the number of stored signal rows. Test helper.
func (m *MemoryRepository) SignalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.signals)
}
