package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashureev/vish/internal/metrics"
)

// RateLimiter implements a per-client token bucket limiter.
// The key is the anonymous client id, not the conversation session id, so
// clients cannot bypass throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window for each key and starts the
// background eviction goroutine. Call Close to stop it.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.evict()
	return rl
}

// Allow reports whether a request for key may proceed.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	cl, ok := r.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = cl
	}
	cl.lastSeen = time.Now()
	r.mu.Unlock()

	if !cl.limiter.Allow() {
		metrics.RateLimited.Inc()
		return false
	}
	return true
}

// Close stops the eviction goroutine.
func (r *RateLimiter) Close() {
	r.once.Do(func() { close(r.done) })
}

// evict periodically removes idle keys, preventing unbounded memory growth.
func (r *RateLimiter) evict() {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-r.window)
			r.mu.Lock()
			for key, cl := range r.limiters {
				if cl.lastSeen.Before(cutoff) {
					delete(r.limiters, key)
				}
			}
			r.mu.Unlock()
		}
	}
}
