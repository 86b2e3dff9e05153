package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Skufu/thyronet/internal/thyroid"
	"github.com/rs/zerolog/log"
)

// Store keeps a dataset snapshot for a limited time.
type Store interface {
	// Get returns the cached rows and whether they were present.
	Get(ctx context.Context) ([]thyroid.DatasetRow, bool, error)
	Set(ctx context.Context, rows []thyroid.DatasetRow, ttl time.Duration) error
}

// CachedSource serves a snapshot from store while it is fresh and refetches
// from the wrapped source otherwise. Store failures fall through to the source.
type CachedSource struct {
	source Source
	store  Store
	ttl    time.Duration
}

// NewCachedSource wraps source with a TTL cache.
func NewCachedSource(source Source, store Store, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, store: store, ttl: ttl}
}

func (c *CachedSource) Fetch(ctx context.Context) ([]thyroid.DatasetRow, error) {
	rows, ok, err := c.store.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("dataset cache read failed")
	} else if ok {
		return rows, nil
	}

	rows, err = c.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	// An empty snapshot is a failed load; keep it out of the cache.
	if len(rows) > 0 {
		if err := c.store.Set(ctx, rows, c.ttl); err != nil {
			log.Warn().Err(err).Msg("dataset cache write failed")
		}
	}
	return rows, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	rows    []thyroid.DatasetRow
	expires time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Get(ctx context.Context) ([]thyroid.DatasetRow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rows == nil || !m.now().Before(m.expires) {
		return nil, false, nil
	}
	return m.rows, true, nil
}

func (m *MemoryStore) Set(ctx context.Context, rows []thyroid.DatasetRow, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("memory store: ttl must be positive, got %s", ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
	m.expires = m.now().Add(ttl)
	return nil
}
