package auth

import (
	"math"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per actor. Buckets are created on
// first use and never expire; cardinality tracks the active user base.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows rps requests per second per actor with the given
// burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

func (l *RateLimiter) allow(actorID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[actorID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[actorID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RateLimitMiddleware enforces per-actor limits at the HTTP layer, keyed by
// the authenticated actor (falls back to remote address). A nil limiter
// disables limiting (dev mode).
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := r.RemoteAddr
			if actor, err := ActorFrom(r.Context()); err == nil {
				key = actor.ID
			}

			if !limiter.allow(key) {
				retryAfter := 1
				if limiter.limit > 0 {
					retryAfter = int(math.Ceil(1 / float64(limiter.limit)))
				}
				if retryAfter < 1 {
					retryAfter = 1
				}
				writeTooManyRequests(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
