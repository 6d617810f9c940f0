// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a process-local token-bucket limiter with one bucket
// per caller (authenticated user, else client IP). Idle buckets are evicted
// opportunistically. Idempotent replays bypass the limiter.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its bucket.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys by "user:<id>" after authentication and by
// "ip:<addr>" otherwise.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := UserIDFrom(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	sweepN   uint64
}

// sweepEvery is the number of lookups between idle-bucket sweeps.
const sweepEvery = 5000

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// limiterFor returns the bucket for key. The sweep runs before the lookup so
// a stale bucket is evicted even when it is the one requested.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepN++
	if rl.sweepN >= sweepEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.sweepN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator exempted this request.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// Handler rejects over-limit requests with 429 and a Retry-After hint.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.limiterFor(rl.keyFn(c))
		r := lim.Reserve()
		if r.OK() && r.Delay() == 0 {
			c.Next()
			return
		}
		secs := 1
		if r.OK() {
			if d := int(r.Delay().Round(time.Second) / time.Second); d > secs {
				secs = d
			}
			r.Cancel()
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		Abort(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}
