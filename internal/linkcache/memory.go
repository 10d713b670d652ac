package linkcache

import (
	"context"
	"maps"
	"sync"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// MemoryStore keeps records for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.ClassificationRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]model.ClassificationRecord)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, url string) (model.ClassificationRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.entries[url]
	return rec, ok, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, url string, rec model.ClassificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[url] = rec
	return nil
}

// size reports the number of cached URLs.
func (m *MemoryStore) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Snapshot implements Snapshotter.
func (m *MemoryStore) Snapshot() map[string]model.ClassificationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries)
}

// Restore implements Snapshotter. Existing entries are kept unless the
// snapshot has the same URL.
func (m *MemoryStore) Restore(entries map[string]model.ClassificationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.entries, entries)
}
