package api

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by client.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its background eviction goroutine.
// Call Stop to end it.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow records a request for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	recent := pruneBefore(r.requests[key], now.Add(-r.window))

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Stop ends the eviction goroutine.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// evictLoop periodically drops keys with no requests inside the window.
func (r *RateLimiter) evictLoop() {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			cutoff := time.Now().Add(-r.window)
			for key, times := range r.requests {
				fresh := pruneBefore(times, cutoff)
				if len(fresh) == 0 {
					delete(r.requests, key)
				} else {
					r.requests[key] = fresh
				}
			}
			r.mu.Unlock()
		}
	}
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	var fresh []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}
