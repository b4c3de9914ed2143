package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"etfkpis/internal/fetcher"
)

// MockFetcher is a mock implementation of the Fetcher interface for testing
type MockFetcher struct {
	FetchFunc func(ctx context.Context, symbol string) (fetcher.Payload, error)

	mu    sync.Mutex
	Calls []string
}

// Fetch implements the Fetcher interface
func (m *MockFetcher) Fetch(ctx context.Context, symbol string) (fetcher.Payload, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, symbol)
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbol)
	}
	return nil, nil
}

// NewMockFetcher creates a mock fetcher answering from a fixed table.
// Symbols missing from payloads have no data.
func NewMockFetcher(payloads map[string]fetcher.Payload) *MockFetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context, symbol string) (fetcher.Payload, error) {
			return payloads[symbol], nil
		},
	}
}

// MockSource is a Source that serves JSON bodies from memory and counts calls
type MockSource struct {
	Bodies map[string][]byte
	Err    error

	mu    sync.Mutex
	Calls int
}

// Signature implements fetcher.Source
func (s *MockSource) Signature(symbol string) string {
	return fmt.Sprintf("GET /mock/%s", symbol)
}

// Do implements fetcher.Source
func (s *MockSource) Do(ctx context.Context, symbol string) ([]byte, error) {
	s.mu.Lock()
	s.Calls++
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	return s.Bodies[symbol], nil
}

// Decode implements fetcher.Source
func (s *MockSource) Decode(body []byte) (fetcher.Payload, error) {
	var p fetcher.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, nil
	}
	return p, nil
}

// CallCount returns the number of Do calls so far
func (s *MockSource) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

// MemoryCache is an in-memory fetcher.Cache
type MemoryCache struct {
	mu      sync.Mutex
	Entries map[string][]byte
	GetErr  error
	SetErr  error
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{Entries: make(map[string][]byte)}
}

// Get implements fetcher.Cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, false, c.GetErr
	}
	v, ok := c.Entries[key]
	return v, ok, nil
}

// Set implements fetcher.Cache
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	c.Entries[key] = value
	return nil
}

// CountingLimiter is a RateLimiter that admits everything and counts admissions
type CountingLimiter struct {
	mu    sync.Mutex
	Count int
	Err   error
}

// Wait implements fetcher.RateLimiter
func (l *CountingLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.Count++
	return nil
}

// FakeClock is a ratelimit.Clock that advances instantly whenever a caller waits on it
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock reading start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the simulated time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After moves the clock forward by d and fires immediately
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
