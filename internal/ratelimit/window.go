package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so the sliding window can be driven by a simulated clock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SlidingWindow admits at most limit events in any trailing window.
type SlidingWindow struct {
	limit  int
	window time.Duration
	clock  Clock

	mu       sync.Mutex
	admitted []time.Time // admission times, oldest first
}

// NewSlidingWindow creates a sliding window limiter. A nil clock uses wall time.
func NewSlidingWindow(limit int, window time.Duration, clock Clock) *SlidingWindow {
	if limit < 1 {
		limit = 1
	}
	if clock == nil {
		clock = realClock{}
	}
	return &SlidingWindow{
		limit:    limit,
		window:   window,
		clock:    clock,
		admitted: make([]time.Time, 0, limit),
	}
}

// Wait blocks until an admission fits in the window, or ctx is done.
func (w *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay, ok := w.tryAdmit()
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(delay):
		}
	}
}

// Allow reports whether an event may happen now, admitting it if so.
func (w *SlidingWindow) Allow() bool {
	_, ok := w.tryAdmit()
	return ok
}

// tryAdmit admits the caller if the window has room. Otherwise it returns how
// long until the oldest admission leaves the window.
func (w *SlidingWindow) tryAdmit() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.evict(now)

	if len(w.admitted) < w.limit {
		w.admitted = append(w.admitted, now)
		return 0, true
	}
	return w.admitted[0].Add(w.window).Sub(now), false
}

// evict drops admissions that are a full window or more in the past.
func (w *SlidingWindow) evict(now time.Time) {
	i := 0
	for i < len(w.admitted) && now.Sub(w.admitted[i]) >= w.window {
		i++
	}
	if i > 0 {
		w.admitted = append(w.admitted[:0], w.admitted[i:]...)
	}
}
