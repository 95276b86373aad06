package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/ideaboard/internal/utils"
)

type RateLimitConfig struct {
	Burst             int // bucket size, also reported as X-RateLimit-Limit
	RefillPerIPPerMin int
	MaxEntries        int           // forces a sweep when reached, 0 = unbounded
	IdleTTL           time.Duration // buckets unused this long are dropped
	TrustProxy        bool          // resolve the client IP from proxy headers

	// Now defaults to time.Now.
	Now func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// limiter keeps one token bucket per key behind a single mutex. Write
// routes are low traffic, so per-bucket locking is not worth it.
type limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      float64 // tokens per second
	capacity  float64
	maxKeys   int
	idleTTL   time.Duration
	nextSweep time.Time
}

type decision struct {
	ok         bool
	remaining  int
	retryAfter int // seconds, only set when !ok
}

func newLimiter(cfg RateLimitConfig) *limiter {
	burst := max(cfg.Burst, 1)
	perMin := max(cfg.RefillPerIPPerMin, 1)
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &limiter{
		buckets:  make(map[string]*bucket),
		rate:     float64(perMin) / 60.0,
		capacity: float64(burst),
		maxKeys:  cfg.MaxEntries,
		idleTTL:  ttl,
	}
}

// take refills key's bucket up to now and spends one token if it can.
func (l *limiter) take(key string, now time.Time) decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) || (l.maxKeys > 0 && len(l.buckets) >= l.maxKeys) {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.buckets[key] = b
	}
	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+dt*l.rate)
		b.last = now
	}

	if b.tokens < 1 {
		wait := int(math.Ceil((1 - b.tokens) / l.rate))
		return decision{retryAfter: max(wait, 1)}
	}
	b.tokens--
	return decision{ok: true, remaining: int(b.tokens)}
}

// allow is take with positional results, used by the tests.
func (l *limiter) allow(key string, now time.Time) (bool, int, int) {
	d := l.take(key, now)
	return d.ok, d.remaining, d.retryAfter
}

func (l *limiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.last) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
	l.nextSweep = now.Add(time.Minute)
}

// RateLimit is a per-client-IP token bucket. One instance should be shared
// by every route it protects, otherwise each route gets its own buckets.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	limit := strconv.Itoa(int(l.capacity))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.take(utils.ClientIP(r, cfg.TrustProxy), now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			if !d.ok {
				h.Set("Retry-After", strconv.Itoa(d.retryAfter))
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
