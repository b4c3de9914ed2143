package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIAlphaVantage represents the AlphaVantage API
	APIAlphaVantage API = "alphavantage"
	// APIYahoo represents the Yahoo Finance quote summary API
	APIYahoo API = "yahoo"
)

const (
	// YahooLimit and YahooWindow cap enrichment lookups at 60 per rolling minute
	YahooLimit  = 60
	YahooWindow = 60 * time.Second
)

// waiter is satisfied by both *rate.Limiter and *SlidingWindow
type waiter interface {
	Wait(ctx context.Context) error
	Allow() bool
}

// Limiter manages rate limits for different APIs
type Limiter struct {
	limiters map[API]waiter
	mu       sync.RWMutex
}

var (
	instance *Limiter
	once     sync.Once
)

// Default returns the process-wide rate limiter. Every caller in the process
// shares the same windows.
func Default() *Limiter {
	once.Do(func() {
		instance = New(nil)
	})
	return instance
}

// New creates a limiter with production limits. A nil clock uses wall time.
func New(clock Clock) *Limiter {
	l := &Limiter{
		limiters: make(map[API]waiter),
	}

	// AlphaVantage: 5 requests per minute on free tier = 1 request every 12 seconds
	l.limiters[APIAlphaVantage] = rate.NewLimiter(rate.Every(12*time.Second), 1)

	// Yahoo has no published quota, we hold ourselves to 60 per trailing minute
	l.limiters[APIYahoo] = NewSlidingWindow(YahooLimit, YahooWindow, clock)

	return l
}

// Unlimited returns a limiter that admits everything, for tests.
func Unlimited() *Limiter {
	return &Limiter{
		limiters: map[API]waiter{
			APIAlphaVantage: rate.NewLimiter(rate.Inf, 1),
			APIYahoo:        rate.NewLimiter(rate.Inf, 1),
		},
	}
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}

// For binds the limiter to one API so it can be handed to a fetcher.
func (l *Limiter) For(api API) *Bound {
	return &Bound{limiter: l, api: api}
}

// Bound is a Limiter scoped to a single API.
type Bound struct {
	limiter *Limiter
	api     API
}

// Wait blocks until the bound API admits an event
func (b *Bound) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx, b.api)
}
