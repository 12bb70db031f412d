// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-visitor token-bucket rate limiter protecting
// the message endpoint. Buckets live in process memory, keyed by widget
// session (or client IP when no session is known), and idle buckets are
// evicted opportunistically to bound memory.
//
// The limiter is process-local abuse control, not authorization; a
// horizontally scaled deployment needs a shared store to enforce global
// limits. Idempotent replays bypass limiting entirely so client retries of
// an already-processed message are never throttled.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity string owning its token bucket.
// The value must be stable for the duration of the request.
type keyFunc func(*gin.Context) string

// KeyBySessionOrIP keys buckets by the widget session when one is known
// (X-Session-ID header, or the "sessionID" Gin context key set upstream),
// falling back to the client IP. Keys are namespaced ("session:…" vs
// "ip:…") so the two spaces cannot collide.
func KeyBySessionOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := sessionIDFromCtx(c); s != "" {
			return "session:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor pairs a bucket with its last activity, for idle eviction.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds per-key token buckets behind a mutex. Safe for
// concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with
// the given burst capacity, keyed by keyFn. A burst <= 0 is coerced to 1;
// rps of 0 admits nothing. Install it via Handler().
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns the bucket for key, creating it on first sight, and
// refreshes its lastSeen. Every ~5000 lookups it sweeps idle entries first,
// so a stale bucket is evicted even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		rl.evictIdleLocked(now)
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// evictIdleLocked drops entries idle for at least ttl. Caller holds rl.mu.
func (rl *RateLimiter) evictIdleLocked(now time.Time) {
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.ttl {
			delete(rl.visitors, k)
		}
	}
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as
// a replay of an already-completed operation; Handler() serves such
// requests without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the per-key limit. Replays pass through untouched;
// everything else draws a token or receives 429 with the standard error
// envelope and a minimal Retry-After header.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
