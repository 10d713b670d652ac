// Package linkcache memoizes per-URL classification verdicts so syndicated
// articles that resurface across many county/date queries are classified
// once per location context.
package linkcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/internal/monitoring"
)

// Store persists classification records by URL.
type Store interface {
	Get(ctx context.Context, url string) (model.ClassificationRecord, bool, error)
	Put(ctx context.Context, url string, rec model.ClassificationRecord) error
}

// Snapshotter is implemented by stores whose contents travel with the batch
// checkpoint.
type Snapshotter interface {
	Snapshot() map[string]model.ClassificationRecord
	Restore(entries map[string]model.ClassificationRecord)
}

// Reusable reports whether a cached record may answer a new observation of
// its URL: same location (case-insensitive) and a window end no later than
// the cached one.
func Reusable(rec model.ClassificationRecord, location string, windowEnd time.Time) bool {
	return strings.EqualFold(rec.LastLocation, location) && !windowEnd.After(rec.LastWindowEnd)
}

// Cache applies the reuse policy over a Store and serializes work per URL.
type Cache struct {
	store   Store
	metrics *monitoring.Metrics

	mu    sync.Mutex
	locks map[string]*urlLock
}

type urlLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a cache over store. metrics may be nil.
func New(store Store, metrics *monitoring.Metrics) *Cache {
	return &Cache{store: store, metrics: metrics, locks: make(map[string]*urlLock)}
}

// Lock takes the per-URL lock and returns its release func. Holding it across
// Lookup, classification and Update makes the read-modify-write atomic.
func (c *Cache) Lock(url string) func() {
	c.mu.Lock()
	l, ok := c.locks[url]
	if !ok {
		l = &urlLock{}
		c.locks[url] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, url)
		}
		c.mu.Unlock()
	}
}

// Lookup returns the cached record for url when it may be reused for the
// given location and window end.
func (c *Cache) Lookup(ctx context.Context, url, location string, windowEnd time.Time) (model.ClassificationRecord, bool, error) {
	rec, ok, err := c.store.Get(ctx, url)
	if err != nil {
		return model.ClassificationRecord{}, false, eris.Wrapf(err, "linkcache: get %s", url)
	}
	switch {
	case !ok:
		c.metrics.CacheLookup("miss")
		return model.ClassificationRecord{}, false, nil
	case !Reusable(rec, location, windowEnd):
		c.metrics.CacheLookup("stale")
		return model.ClassificationRecord{}, false, nil
	default:
		c.metrics.CacheLookup("hit")
		return rec, true, nil
	}
}

// Update overwrites the record for url.
func (c *Cache) Update(ctx context.Context, url, location string, windowEnd time.Time, explanation string, verdict bool) error {
	rec := model.ClassificationRecord{
		LastLocation:  location,
		LastWindowEnd: windowEnd,
		Explanation:   explanation,
		Verdict:       verdict,
	}
	if err := c.store.Put(ctx, url, rec); err != nil {
		return eris.Wrapf(err, "linkcache: put %s", url)
	}
	return nil
}

// Snapshot returns the store contents when the store supports it, else nil.
func (c *Cache) Snapshot() map[string]model.ClassificationRecord {
	if s, ok := c.store.(Snapshotter); ok {
		return s.Snapshot()
	}
	return nil
}

// Restore loads entries into the store when it supports snapshots.
func (c *Cache) Restore(entries map[string]model.ClassificationRecord) {
	if s, ok := c.store.(Snapshotter); ok && len(entries) > 0 {
		s.Restore(entries)
	}
}
