package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	rl := NewKeyedRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	defer rl.Stop()

	assert.True(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"), "burst exhausted")
	assert.True(t, rl.Allow("user-2"), "keys are independent")

	allowed, rejected := rl.Stats()
	assert.Equal(t, uint64(3), allowed)
	assert.Equal(t, uint64(1), rejected)
}

func TestKeyedRateLimiter_Unlimited(t *testing.T) {
	rl := NewKeyedRateLimiter(RateLimitConfig{})
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("k"))
	}
}

func TestKeyedRateLimiter_CleanupEvictsIdleKeys(t *testing.T) {
	rl := NewKeyedRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   10 * time.Millisecond,
		EntryTTL:          10 * time.Millisecond,
	})
	defer rl.Stop()

	rl.Allow("idle")
	assert.Eventually(t, func() bool {
		_, ok := rl.entries.Load("idle")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewKeyedRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	defer rl.Stop()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextKeyUserID, c.GetHeader("X-User"))
		c.Next()
	})
	router.POST("/ticket-requests", RateLimit(rl), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/ticket-requests", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
	assert.Equal(t, http.StatusCreated, send("b"))
}
