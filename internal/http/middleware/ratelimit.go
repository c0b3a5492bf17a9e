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

// KeyFunc maps a request to the identity whose bucket it draws from.
type KeyFunc func(*gin.Context) string

// KeyByActorOrIP keys by store and team member when Identity resolved an
// actor, and by client IP otherwise. A team member id reused in another
// store gets its own bucket.
func KeyByActorOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if a, ok := ActorFrom(c); ok {
			return "actor:" + a.StoreID + "/" + a.ID
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64 // tokens per second
	Burst int     // bucket size; <= 0 means 1
	Key   KeyFunc // nil means KeyByActorOrIP
	// ExemptPaths are never limited (health probes, metric scrapes).
	ExemptPaths []string
	// IdleTTL evicts buckets unused for this long; <= 0 means 10 minutes.
	IdleTTL time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process token-bucket limiter with one bucket per
// key. Replays flagged by IdempotencyValidator pass without spending a
// token. Limits are per process; they are not shared between replicas.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	key    KeyFunc
	exempt map[string]struct{}
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter builds a limiter; install it with Handler.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(opts.RPS),
		burst:   opts.Burst,
		key:     opts.Key,
		exempt:  make(map[string]struct{}, len(opts.ExemptPaths)),
		ttl:     opts.IdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if rl.burst <= 0 {
		rl.burst = 1
	}
	if rl.key == nil {
		rl.key = KeyByActorOrIP()
	}
	if rl.ttl <= 0 {
		rl.ttl = 10 * time.Minute
	}
	for _, p := range opts.ExemptPaths {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// limiter returns the bucket for key. Idle buckets are swept at most once
// per TTL, before the lookup, so a stale bucket is never revived.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// size reports the number of live buckets.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay that should not spend a token.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Get(ctxKeyRateBypass)
	v, _ := b.(bool)
	return v
}

// Handler enforces the limit. A rejected request gets 429 with a
// Retry-After (whole seconds, at least 1) computed from the bucket.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.exempt[c.Request.URL.Path]; ok || IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.limiter(rl.key(c))
		now := rl.now()
		res := lim.ReserveN(now, 1)
		if res.OK() {
			delay := res.DelayFrom(now)
			if delay == 0 {
				c.Next()
				return
			}
			res.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		} else {
			c.Header("Retry-After", "1")
		}
		LoggerFrom(c).Warn().Str("key", rl.key(c)).Msg("rate limited")
		abortJSON(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}
