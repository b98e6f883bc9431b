package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newLimitedRouter(r *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ping", r.Middleware(zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func ping(router *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(1, 2))

	assert.Equal(t, http.StatusOK, ping(router, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, ping(router, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, ping(router, "10.0.0.1"))

	// Buckets are per client.
	assert.Equal(t, http.StatusOK, ping(router, "10.0.0.2"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := NewRateLimiter(0, 1)
	router := newLimitedRouter(r)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, ping(router, "10.0.0.1"))
	}
	assert.Equal(t, 0, r.visitors())
}

func TestRateLimiter_SweepDropsIdleVisitors(t *testing.T) {
	r := NewRateLimiter(60, 5)
	router := newLimitedRouter(r)
	ping(router, "10.0.0.1")
	ping(router, "10.0.0.2")

	// Requests alone never shrink the table.
	assert.Equal(t, 2, r.visitors())

	assert.Equal(t, 0, r.sweep(time.Now()))
	assert.Equal(t, 2, r.sweep(time.Now().Add(r.ttl+time.Second)))
	assert.Equal(t, 0, r.visitors())
}

func TestRateLimiter_RunSweepsUntilCancelled(t *testing.T) {
	r := NewRateLimiter(60, 5)
	r.ttl = time.Millisecond
	ping(newLimitedRouter(r), "10.0.0.1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.visitors() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
