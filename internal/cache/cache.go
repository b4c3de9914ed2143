package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"etfkpis/internal/fetcher"
)

// Backend names a cache implementation
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Store is a fetcher.Cache that can be emptied and closed.
type Store interface {
	fetcher.Cache
	Clear(ctx context.Context) (int64, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend   Backend
	Path      string // sqlite file
	RedisAddr string
}

// Open opens the configured backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite cache requires a path")
		}
		return OpenSQLite(opts.Path)
	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis cache requires an address")
		}
		rdb := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		return NewRedis(rdb, 0, ""), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
