package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter manages per-key token buckets. Keys idle for longer than
// a full refill are evicted; their bucket would be full again anyway.
type KeyedRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*keyedLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// New creates a keyed limiter allowing rps requests per second with the
// given burst.
func New(rps float64, burst int) *KeyedRateLimiter {
	idle := time.Minute
	if rps > 0 {
		idle = time.Duration(float64(burst) / rps * float64(time.Second))
	}

	krl := &KeyedRateLimiter{
		limiters: make(map[string]*keyedLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  idle,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	go krl.cleanup(min(max(idle, time.Second), 10*time.Minute))

	return krl
}

// PerMinute creates a keyed limiter refilling perMinute tokens a minute.
func PerMinute(perMinute, burst int) *KeyedRateLimiter {
	return New(float64(perMinute)/60, burst)
}

// Allow reports whether a request for key may proceed.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).AllowN(krl.now(), 1)
}

// getLimiter returns the limiter for a key, creating one if needed.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	now := krl.now().UnixNano()

	krl.mu.RLock()
	kl, exists := krl.limiters[key]
	krl.mu.RUnlock()

	if !exists {
		krl.mu.Lock()
		// Double-check after acquiring write lock
		if kl, exists = krl.limiters[key]; !exists {
			kl = &keyedLimiter{limiter: rate.NewLimiter(krl.limit, krl.burst)}
			krl.limiters[key] = kl
		}
		krl.mu.Unlock()
	}

	kl.lastSeen.Store(now)
	return kl.limiter
}

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.RLock()
	defer krl.mu.RUnlock()
	return len(krl.limiters)
}

// evict drops keys not seen since before now-idleTTL.
func (krl *KeyedRateLimiter) evict(now time.Time) int {
	cutoff := now.Add(-krl.idleTTL).UnixNano()

	krl.mu.Lock()
	defer krl.mu.Unlock()

	n := 0
	for key, kl := range krl.limiters {
		if kl.lastSeen.Load() < cutoff {
			delete(krl.limiters, key)
			n++
		}
	}
	return n
}

// Stop shuts down the cleanup goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

func (krl *KeyedRateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.evict(krl.now())
		}
	}
}
