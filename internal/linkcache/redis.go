package linkcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// DefaultRedisTTL bounds how long a shared verdict lives.
const DefaultRedisTTL = 30 * 24 * time.Hour

// RedisStore shares records between runs and machines through Redis. Each
// URL is one JSON string key under a prefix.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store. A non-positive ttl uses DefaultRedisTTL.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(url string) string { return r.prefix + url }

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, url string) (model.ClassificationRecord, bool, error) {
	raw, err := r.client.Get(ctx, r.key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ClassificationRecord{}, false, nil
	}
	if err != nil {
		return model.ClassificationRecord{}, false, eris.Wrap(err, "redis: get")
	}
	var rec model.ClassificationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.ClassificationRecord{}, false, eris.Wrap(err, "redis: decode record")
	}
	return rec, true, nil
}

// Put implements Store.
func (r *RedisStore) Put(ctx context.Context, url string, rec model.ClassificationRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "redis: encode record")
	}
	if err := r.client.Set(ctx, r.key(url), raw, r.ttl).Err(); err != nil {
		return eris.Wrap(err, "redis: set")
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return eris.Wrap(r.client.Ping(ctx).Err(), "redis: ping")
}
