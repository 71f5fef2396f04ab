package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by client address.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter allows limit requests per key within window.
// A limit of zero or less disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow records a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	reqs := rl.requests[key]
	valid := reqs[:0]
	for _, t := range reqs {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	if len(valid) == 0 && len(rl.requests) > 4096 {
		rl.sweep(cutoff)
	}

	rl.requests[key] = append(valid, now)
	return true
}

// sweep drops keys whose requests have all expired. Caller holds mu.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	for k, reqs := range rl.requests {
		if len(reqs) == 0 || !reqs[len(reqs)-1].After(cutoff) {
			delete(rl.requests, k)
		}
	}
}

// RateLimit returns 429 once a client exceeds its window. A nil limiter is a no-op.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl != nil && !rl.Allow(clientIP(r)) {
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
