// Package middleware contains the Gin middleware shared by the dashboard API,
// the provider webhooks and the webchat endpoints.
//
// This file implements Idempotency-Key support for webchat posts. It
// validates the header, asks a pluggable IdempotencyLookup whether the key
// already completed in its scope (the :channelId route parameter by default)
// and annotates the Gin context so downstream code can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect replayed requests (IsReplay)
//   - let RateLimiter wave a replay through (IsRateBypass)
//
// Invalid keys are rejected with 400 "bad_idempotency_key". Lookup errors
// are treated as "not a replay"; the service-level receipt still prevents a
// second USER message.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's retry key for webchat posts.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key validated by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a completed request for the key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures key validation. MaxLen <= 0 means 200;
// a nil Pattern allows token characters only.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
	// ScopeParam names the route parameter the key is scoped to
	// ("channelId" when empty).
	ScopeParam string
}

// IdempotencyLookup reports whether a still-valid result exists for key
// within scope. Errors never block the request.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator checks the Idempotency-Key header when present and
// stashes it for handlers. Keys that already completed are flagged as replays
// and skip rate limiting.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}
	param := opts.ScopeParam
	if param == "" {
		param = "channelId"
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": requestID(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if exists, _ := lookup(c.Request.Context(), c.Param(param), key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
