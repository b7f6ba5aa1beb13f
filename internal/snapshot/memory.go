package snapshot

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Save(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.SessionID] = rec
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[sessionID]
	if !ok || expired(rec.Timestamp, m.ttl, m.now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Purge(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, rec := range m.records {
		if rec.Timestamp.Before(before) {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }
