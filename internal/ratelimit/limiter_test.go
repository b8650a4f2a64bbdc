package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/taskbus/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	cfg := &config.Config{
		RateLimitAPIProcess: "2-M",
		RateLimitWSConnect:  "2-M",
	}
	rl, err := NewRateLimiter(cfg)
	require.NoError(t, err)
	return rl
}

func TestRateLimiter_ProcessMiddleware_AllowsUnderLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := newTestLimiter(t)

	router := gin.New()
	router.Use(rl.ProcessMiddleware())
	router.POST("/api/process", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/process", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_ProcessMiddleware_RejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := newTestLimiter(t)

	router := gin.New()
	router.Use(rl.ProcessMiddleware())
	router.POST("/api/process", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/process", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestRateLimiter_CheckWebSocketConnect(t *testing.T) {
	rl := newTestLimiter(t)
	ctx := context.Background()

	assert.True(t, rl.CheckWebSocketConnect(ctx, "192.168.1.1"))
	assert.True(t, rl.CheckWebSocketConnect(ctx, "192.168.1.1"))
	assert.False(t, rl.CheckWebSocketConnect(ctx, "192.168.1.1"))
}

func TestNewRateLimiter_InvalidRate(t *testing.T) {
	cfg := &config.Config{
		RateLimitAPIProcess: "not-a-rate",
		RateLimitWSConnect:  "2-M",
	}
	_, err := NewRateLimiter(cfg)
	assert.Error(t, err)
}
