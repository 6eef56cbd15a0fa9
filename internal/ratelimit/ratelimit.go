// Package ratelimit limits requests per client key. WindowLimiter and
// RedisLimiter are fixed-window counters, in process and shared across
// instances respectively. KeyedRateLimiter is a token bucket used to slow down
// repeated credential attempts.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes the outcome of taking one request from a key's budget.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAfter is how long until the key's window starts over.
	ResetAfter time.Duration
}

// Limiter is implemented by both fixed-window backends.
type Limiter interface {
	Take(ctx context.Context, key string) (Result, error)
	Close() error
}

// WindowLimiter allows limit requests per key in each window. A key's window
// starts with its first request; the counter resets once it has elapsed.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	length  time.Duration
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	count int
}

var _ Limiter = (*WindowLimiter)(nil)

// NewWindow creates a limiter allowing requests per window for each key.
func NewWindow(requests int, length time.Duration) *WindowLimiter {
	wl := &WindowLimiter{
		windows: make(map[string]*window),
		limit:   requests,
		length:  length,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	go wl.cleanup(min(max(length, time.Second), 10*time.Minute))

	return wl
}

// Take implements Limiter.
func (wl *WindowLimiter) Take(_ context.Context, key string) (Result, error) {
	now := wl.now()

	wl.mu.Lock()
	w, ok := wl.windows[key]
	if !ok || !now.Before(w.start.Add(wl.length)) {
		w = &window{start: now}
		wl.windows[key] = w
	}
	w.count++
	count := w.count
	reset := w.start.Add(wl.length).Sub(now)
	wl.mu.Unlock()

	return Result{
		Allowed:    count <= wl.limit,
		Limit:      wl.limit,
		Remaining:  max(wl.limit-count, 0),
		ResetAfter: reset,
	}, nil
}

// Len returns the number of tracked keys.
func (wl *WindowLimiter) Len() int {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return len(wl.windows)
}

// evict drops keys whose window has ended.
func (wl *WindowLimiter) evict(now time.Time) int {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	n := 0
	for key, w := range wl.windows {
		if !now.Before(w.start.Add(wl.length)) {
			delete(wl.windows, key)
			n++
		}
	}
	return n
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (wl *WindowLimiter) Close() error {
	wl.stopOnce.Do(func() {
		close(wl.done)
	})
	return nil
}

func (wl *WindowLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-wl.done:
			return
		case <-ticker.C:
			wl.evict(wl.now())
		}
	}
}
