// Package middleware contains the Gin middleware shared by the dashboard API,
// the provider webhooks and the webchat endpoints.
//
// This file implements an in-memory token-bucket rate limiter with
// per-identity buckets built on golang.org/x/time/rate.
//
// Usage:
//
//	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByWorkspaceOrIP())
//	api.Use(rl.Handler())
//
// Semantics:
//   - Buckets are keyed by KeyFunc (workspace, else client IP).
//   - Idle buckets are swept opportunistically so memory stays bounded.
//   - Requests flagged by IdempotencyValidator as replays bypass the limit.
//   - Rejections answer 429 with a Retry-After header.
//
// Limits are per process; provider webhooks are mounted outside the limiter.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByWorkspaceOrIP buckets dashboard traffic per workspace and anonymous
// traffic (webchat visitors) per client IP.
func KeyByWorkspaceOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if ws := WorkspaceFrom(c); ws != "" {
			return "ws:" + ws
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP buckets every request by client IP.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. Idle buckets are
// dropped after ttl during periodic sweeps.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

// NewRateLimiter builds a limiter allowing rps requests per second with the
// given burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// limiter returns the bucket for key. Every 5000 lookups idle buckets are
// swept first, so a stale bucket is replaced rather than refreshed.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked a replay.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Get(ctxKeyRateBypass)
	v, _ := b.(bool)
	return v
}

// Handler enforces the limit and answers 429 with Retry-After when the bucket
// is empty. Idempotent replays are never limited.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.limiter(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
