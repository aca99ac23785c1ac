package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)
		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("client1"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("client1"))
	})

	t.Run("separate limits per client", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)
		assert.True(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientA"))
		assert.False(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientB"))
	})

	t.Run("refills over time", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.Allow("c"))
		assert.True(t, limiter.Allow("c"))
		assert.False(t, limiter.Allow("c"))

		now = now.Add(30 * time.Second)
		assert.True(t, limiter.Allow("c"))
	})

	t.Run("remaining", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)
		assert.Equal(t, 3, limiter.Remaining("fresh"))
		limiter.Allow("fresh")
		assert.Equal(t, 2, limiter.Remaining("fresh"))
	})

	t.Run("cleanup drops idle buckets", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)
		now := time.Now()
		limiter.now = func() time.Time { return now }
		limiter.Allow("old")

		now = now.Add(3 * time.Minute)
		limiter.Allow("new")

		assert.Equal(t, 1, limiter.Cleanup())
		assert.Equal(t, 3, limiter.Remaining("old"))
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		limiter := NewRateLimiter(100, time.Minute)
		fixed := time.Now()
		limiter.now = func() time.Time { return fixed }
		var wg sync.WaitGroup
		allowed := make(chan bool, 150)
		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				allowed <- limiter.Allow("shared")
			}()
		}
		wg.Wait()
		close(allowed)

		count := 0
		for ok := range allowed {
			if ok {
				count++
			}
		}
		assert.Equal(t, 100, count)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(NewRateLimiter(2, time.Minute)))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_RATE_LIMITED")
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestRateLimitByKey_UserOrIP(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set(JWTUserIDKey, u)
		}
		c.Next()
	})
	router.Use(RateLimitByKey(limiter, UserOrIPKey))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("u1"))
	assert.Equal(t, http.StatusTooManyRequests, send("u1"))
	assert.Equal(t, http.StatusOK, send("u2"))
	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(""))
}

func TestAuthRateLimit_IsolatedKeys(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	limiter.Allow("192.0.2.1")

	router := gin.New()
	router.Use(AuthRateLimit(limiter))
	router.POST("/login", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
