package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// RateLimiter decides whether a request identified by key may proceed.
// Implementations return whether the request is allowed, an estimate of the
// remaining budget, and the duration until the next slot opens.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// UberRateLimiter implements RateLimiter using Uber's ratelimit library
// (leaky bucket).
type UberRateLimiter struct {
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
}

// NewUberRateLimiter creates a new rate limiter using Uber's ratelimit
// library.
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{}
}

// getLimiter gets or creates a limiter for the given key and rate (requests
// per second). The composite key includes the RPS so the same base key can
// carry different limits.
func (u *UberRateLimiter) getLimiter(key string, rps int) ratelimit.Limiter {
	compositeKey := fmt.Sprintf("%s-%d", key, rps)

	if limiter, ok := u.limiters.Load(compositeKey); ok {
		return limiter.(ratelimit.Limiter)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	// Double-check after acquiring the lock.
	if limiter, ok := u.limiters.Load(compositeKey); ok {
		return limiter.(ratelimit.Limiter)
	}

	limiter := ratelimit.New(rps)
	u.limiters.Store(compositeKey, limiter)
	return limiter
}

var _ RateLimiter = (*UberRateLimiter)(nil)

// Allow checks if a request is allowed based on the key and rate limit
// config, using the leaky bucket algorithm.
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	// Convert limit and window to requests per second for Uber's limiter,
	// keeping RPS at least 1.
	rps := int(float64(limit) / window.Seconds())
	if rps < 1 {
		rps = 1
	}

	limiter := u.getLimiter(key, rps)

	// Take blocks until a token is available and returns the time when the
	// next token opens up.
	now := time.Now()
	nextAvailable := limiter.Take()
	waitTime := nextAvailable.Sub(now)

	// Estimate the remaining budget from the wait time relative to the
	// window. This is an approximation for leaky bucket.
	remaining := int(float64(limit) * (1 - waitTime.Seconds()/window.Seconds()))
	if remaining < 0 {
		remaining = 0
	}

	// Take may return a time slightly in the future even when not strictly
	// limited; a small threshold distinguishes actual limiting from minor
	// clock differences.
	allowed := waitTime <= time.Millisecond

	resetDuration := waitTime
	if resetDuration < 0 {
		resetDuration = 0
	}

	return allowed, remaining, resetDuration
}

// RateLimitConfig configures the RateLimit unit.
type RateLimitConfig struct {
	// Name prefixes the limiter key so separate tables or buckets do not
	// share budgets.
	Name string

	// Limit is the number of requests allowed per Window.
	Limit int

	// Window is the time window the limit applies to.
	Window time.Duration

	// KeyBy derives the limiter key from a request. When nil, the client IP
	// from the mcontext container is used, falling back to RemoteAddr when
	// no ClientIP unit ran earlier in the chain.
	KeyBy func(r *http.Request) string
}

// RateLimit returns a before unit that enforces the configured rate limit.
// The X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset headers
// are set on every response. A denied request gets a Retry-After header and a
// 429 *common.HTTPError, halting the chain.
//
// A nil config disables limiting. Panics when limiter is nil with a non-nil
// config.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) chain.Unit {
	if config == nil {
		return chain.BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
			return nil
		})
	}
	if limiter == nil {
		panic("middleware: RateLimit requires a non-nil RateLimiter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	keyBy := config.KeyBy
	if keyBy == nil {
		keyBy = func(r *http.Request) string {
			if ip, ok := mcontext.GetClientIPFromRequest(r); ok && ip != "" {
				return ip
			}
			return cleanIP(r.RemoteAddr)
		}
	}

	return chain.BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
		key := keyBy(r)
		bucketKey := config.Name + ":" + key

		allowed, remaining, reset := limiter.Allow(bucketKey, config.Limit, config.Window)

		// Set rate limit headers regardless of outcome.
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if allowed {
			return nil
		}

		retryAfterSeconds := int64(reset.Seconds())
		if retryAfterSeconds < 1 {
			retryAfterSeconds = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds, 10))

		logger.Warn("Rate limit exceeded",
			zap.String("bucket", config.Name),
			zap.String("key", key),
			zap.Int("limit", config.Limit),
			zap.Duration("window", config.Window),
			zap.Duration("reset_duration", reset),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)

		return common.NewHTTPError(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
	})
}
