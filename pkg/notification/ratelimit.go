package notification

import (
	"sync"

	"golang.org/x/time/rate"
)

// rateLimiter holds one token bucket per user
type rateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[int64]*rate.Limiter
}

// newRateLimiter creates a limiter allowing perSecond updates per user with
// the given burst. A non-positive rate disables limiting.
func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}

	return &rateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Allow reports whether an update from the user may be processed now
func (r *rateLimiter) Allow(userID int64) bool {
	if r.limit == rate.Inf {
		return true
	}

	r.mu.Lock()
	limiter, ok := r.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters[userID] = limiter
	}
	r.mu.Unlock()

	return limiter.Allow()
}
