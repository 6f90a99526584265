package oapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware and per-route limits
// set with WithRateLimit. Limits apply per key.
type RateLimitConfig struct {
	Rate    float64 // tokens per second
	Burst   int
	KeyFunc func(r *http.Request) string // default: client IP

	// OnLimit writes the rejection. Retry-After is already set.
	// Default: a 429 problem response.
	OnLimit func(w http.ResponseWriter, r *http.Request)

	CleanupInterval time.Duration // default: 1m
	MaxIdle         time.Duration // default: 5m
}

// RateLimit returns middleware that applies per-key token bucket limiting.
func RateLimit(cfg RateLimitConfig) Middleware {
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = clientIP
	}
	reject := cfg.OnLimit
	if reject == nil {
		reject = func(w http.ResponseWriter, _ *http.Request) {
			writeProblem(w, Error(http.StatusTooManyRequests, "rate limit exceeded"))
		}
	}
	wait := retryAfter(cfg.Rate)
	set := newLimiterSet(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if set.allow(keyOf(r), time.Now()) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", wait)
			reject(w, r)
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

// retryAfter is the whole number of seconds until the next token, at least 1.
func retryAfter(perSecond float64) string {
	if perSecond <= 0 || perSecond >= 1 {
		return "1"
	}
	return strconv.FormatFloat(math.Ceil(1/perSecond), 'f', 0, 64)
}

// limiterSet holds one token bucket per key and drops buckets that sat idle
// longer than maxIdle, checked at most once per sweepEvery.
type limiterSet struct {
	limit      rate.Limit
	burst      int
	sweepEvery time.Duration
	maxIdle    time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	*rate.Limiter
	seen time.Time
}

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	s := &limiterSet{
		limit:      rate.Limit(cfg.Rate),
		burst:      cfg.Burst,
		sweepEvery: cfg.CleanupInterval,
		maxIdle:    cfg.MaxIdle,
		buckets:    make(map[string]*bucket),
	}
	if s.sweepEvery <= 0 {
		s.sweepEvery = time.Minute
	}
	if s.maxIdle <= 0 {
		s.maxIdle = 5 * time.Minute
	}
	return s
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	if now.Sub(s.lastSweep) >= s.sweepEvery {
		for k, b := range s.buckets {
			if now.Sub(b.seen) > s.maxIdle {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.seen = now
	s.mu.Unlock()

	return b.AllowN(now, 1)
}
