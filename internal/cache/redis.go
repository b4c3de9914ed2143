package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"etfkpis/internal/fetcher"
)

// Redis is a fetcher.Cache backed by redis. A zero ttl keeps entries forever.
type Redis struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ fetcher.Cache = (*Redis)(nil)

// NewRedis creates a redis cache. If namespace is empty, it uses "etfkpis".
func NewRedis(rdb *redis.Client, ttl time.Duration, namespace string) *Redis {
	if namespace == "" {
		namespace = "etfkpis"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{rdb: rdb, ttl: ttl, namespace: namespace}
}

// Get implements fetcher.Cache
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set implements fetcher.Cache
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, r.key(key), value, r.ttl).Err()
}

// Clear deletes every key in the namespace using SCAN.
func (r *Redis) Clear(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, cur, err := r.rdb.Scan(ctx, cursor, r.namespace+":*", 200).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := r.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += n
		}
		cursor = cur
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) key(k string) string {
	return r.namespace + ":" + strings.ReplaceAll(k, " ", "_")
}
