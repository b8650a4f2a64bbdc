// Package ratelimit implements ingress rate limiting for the HTTP dispatcher
// and the chat bus's WebSocket accept path.
//
// This guards the outer transport surface only (abusive connect/request
// rates); it is not part of the Dispatcher or MessageRouter domain logic.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/example/taskbus/internal/config"
	"github.com/example/taskbus/internal/logging"
	"github.com/example/taskbus/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimiter holds the rate limiter instances for the two protected surfaces.
type RateLimiter struct {
	apiProcess *limiter.Limiter
	wsConnect  *limiter.Limiter
}

// NewRateLimiter creates a new RateLimiter from the resolved configuration.
// Uses an in-process memory store: the spec is explicit that this system has
// no distributed/clustered deployment, so a single-process limiter is the
// only consistent choice.
func NewRateLimiter(cfg *config.Config) (*RateLimiter, error) {
	apiRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIProcess)
	if err != nil {
		return nil, fmt.Errorf("invalid API process rate: %w", err)
	}

	wsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWSConnect)
	if err != nil {
		return nil, fmt.Errorf("invalid WS connect rate: %w", err)
	}

	store := memory.NewStore()

	return &RateLimiter{
		apiProcess: limiter.New(store, apiRate),
		wsConnect:  limiter.New(store, wsRate),
	}, nil
}

// ProcessMiddleware returns a Gin middleware enforcing the /api/process
// ingress rate limit, keyed by client IP.
func (rl *RateLimiter) ProcessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() != "/api/process" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := c.ClientIP()

		lctx, err := rl.apiProcess.Get(ctx, key)
		if err != nil {
			// Fail open: availability of the dispatcher outweighs strict rate
			// enforcement when the limiter store itself is unhealthy.
			logging.Error(ctx, "rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath(), "ip").Inc()
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// CheckWebSocketConnect checks whether a new WebSocket connection from the
// given IP should be admitted. Returns false if the limit is exceeded (the
// caller is responsible for rejecting the upgrade).
func (rl *RateLimiter) CheckWebSocketConnect(ctx context.Context, ip string) bool {
	lctx, err := rl.wsConnect.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "ws rate limiter store failed", zap.Error(err))
		return true // fail open
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		return false
	}

	metrics.RateLimitRequests.WithLabelValues("websocket_connect").Inc()
	return true
}
