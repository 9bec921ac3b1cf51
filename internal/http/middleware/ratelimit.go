// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a process-local, per-identity token-bucket rate
// limiter (golang.org/x/time/rate). Buckets are keyed by the authenticated
// user when Auth already ran, otherwise by client IP, and idle buckets are
// evicted opportunistically. Idempotent replays (see IdempotencyValidator)
// are never limited.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to a bucket identity.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP prefers "user:<id>" and falls back to "ip:<addr>".
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
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

	mu        sync.Mutex
	visitors  map[string]*visitor
	ttl       time.Duration // idle buckets older than this are evicted
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter returns a limiter refilling rps tokens per second with the
// given burst (coerced to at least 1). A nil keyFn keys by user or IP.
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
		now:      time.Now,
	}
}

// bucket returns the limiter for key, sweeping idle buckets at most once
// per ttl.
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay that should not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limit, answering 429 rate_limited with Retry-After
// set to the whole seconds until the next token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.bucket(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim)))
		abortJSON(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}

// maxRetryWait is the longest wait reported as-is.
const maxRetryWait = 24 * time.Hour

// retryAfter peeks at the wait for one token without consuming it. A
// limiter that never refills reports 60.
func retryAfter(lim *rate.Limiter) int {
	if lim.Limit() <= 0 {
		return 60
	}
	r := lim.Reserve()
	if !r.OK() {
		return 60
	}
	d := r.Delay()
	r.Cancel()
	// Delay is measured from a later clock read, so an infinite wait can
	// come back a hair under InfDuration.
	if d >= maxRetryWait {
		return 60
	}
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
