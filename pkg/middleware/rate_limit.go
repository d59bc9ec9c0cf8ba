package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bamanh2802/bookingcar/pkg/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds per-principal rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per key (0 = unlimited)
	RequestsPerSecond float64
	// BurstSize is the token bucket capacity
	BurstSize int
	// CleanupInterval controls how often idle keys are evicted
	CleanupInterval time.Duration
	// EntryTTL is how long an idle key is kept
	EntryTTL time.Duration
}

// DefaultRateLimitConfig returns defaults suited to ticket request creation
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
		CleanupInterval:   time.Minute,
		EntryTTL:          5 * time.Minute,
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// KeyedRateLimiter keeps one token bucket per key
type KeyedRateLimiter struct {
	config   RateLimitConfig
	entries  sync.Map
	stop     chan struct{}
	stopOnce sync.Once

	totalAllowed  atomic.Uint64
	totalRejected atomic.Uint64
}

// NewKeyedRateLimiter creates a limiter and starts its cleanup loop
func NewKeyedRateLimiter(config RateLimitConfig) *KeyedRateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = 5 * time.Minute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}

	rl := &KeyedRateLimiter{
		config: config,
		stop:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether a request for key may proceed now
func (rl *KeyedRateLimiter) Allow(key string) bool {
	if rl.config.RequestsPerSecond <= 0 {
		rl.totalAllowed.Add(1)
		return true
	}

	v, _ := rl.entries.LoadOrStore(key, &limiterEntry{
		limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
	})
	e := v.(*limiterEntry)
	e.lastSeen.Store(time.Now().UnixNano())

	if e.limiter.Allow() {
		rl.totalAllowed.Add(1)
		return true
	}
	rl.totalRejected.Add(1)
	return false
}

// Stats returns allowed and rejected totals
func (rl *KeyedRateLimiter) Stats() (allowed, rejected uint64) {
	return rl.totalAllowed.Load(), rl.totalRejected.Load()
}

func (rl *KeyedRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.config.EntryTTL).UnixNano()
			rl.entries.Range(func(key, value interface{}) bool {
				if value.(*limiterEntry).lastSeen.Load() < cutoff {
					rl.entries.Delete(key)
				}
				return true
			})
		case <-rl.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *KeyedRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// RateLimit throttles requests per authenticated user, falling back to client IP
func RateLimit(rl *KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := GetUserID(c)
		if !ok || key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.FormatFloat(rl.config.RequestsPerSecond, 'f', -1, 64))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.TooManyRequests(""))
			return
		}

		c.Next()
	}
}
