package fetcher

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Payload is the decoded enrichment data for one symbol, keyed by provider field name.
// A nil Payload means the provider has no data for the symbol.
type Payload map[string]any

// Fetcher is the core interface the enrichment collector depends on.
type Fetcher interface {
	// Fetch retrieves the enrichment payload for a symbol.
	// It returns (nil, nil) when the provider has no data for it.
	Fetch(ctx context.Context, symbol string) (Payload, error)
}

// Source performs the actual network call for one symbol.
type Source interface {
	// Signature returns the cache key of the outbound request for a symbol.
	// Format: GET {path}?{stable query}
	Signature(symbol string) string

	// Do issues the request and returns the raw response body.
	// A nil body with a nil error means the provider has no data and the
	// response must not be cached.
	Do(ctx context.Context, symbol string) ([]byte, error)

	// Decode turns a raw body into a payload. An empty payload decodes to nil.
	Decode(body []byte) (Payload, error)
}

// RateLimiter admits outbound requests, blocking until capacity is available.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Cache stores raw response bodies by request signature.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedFetcher decorates a Source with a response cache and a rate limiter.
// Cache hits never consume limiter capacity.
type CachedFetcher struct {
	source  Source
	limiter RateLimiter
	cache   Cache
	log     logrus.FieldLogger
}

// NewCachedFetcher creates a new fetcher. A nil cache disables caching and a nil
// limiter disables rate limiting.
func NewCachedFetcher(source Source, limiter RateLimiter, cache Cache, log logrus.FieldLogger) *CachedFetcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedFetcher{
		source:  source,
		limiter: limiter,
		cache:   cache,
		log:     log,
	}
}

// Fetch returns the cached payload for symbol, or fetches and caches it.
func (f *CachedFetcher) Fetch(ctx context.Context, symbol string) (Payload, error) {
	key := f.source.Signature(symbol)

	// 1) Check cache
	if f.cache != nil {
		body, ok, err := f.cache.Get(ctx, key)
		switch {
		case err != nil:
			f.log.WithError(err).WithField("key", key).Warn("cache read failed, fetching from provider")
		case ok:
			payload, err := f.source.Decode(body)
			if err == nil {
				return payload, nil
			}
			// Corrupt entry, it gets overwritten below
			f.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		}
	}

	// 2) Fall back to the provider
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, ClassifyTransportError(err)
		}
	}

	body, err := f.source.Do(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	payload, err := f.source.Decode(body)
	if err != nil {
		return nil, NewNetworkError(err)
	}

	// 3) Store in cache (best effort)
	if f.cache != nil {
		if err := f.cache.Set(ctx, key, body); err != nil {
			f.log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
	}

	return payload, nil
}
