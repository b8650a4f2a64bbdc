package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/taskbus/internal/auth"
	"github.com/example/taskbus/internal/chat"
	"github.com/example/taskbus/internal/config"
	"github.com/example/taskbus/internal/health"
	"github.com/example/taskbus/internal/idgen"
	"github.com/example/taskbus/internal/logging"
	"github.com/example/taskbus/internal/middleware"
	"github.com/example/taskbus/internal/ratelimit"
)

func main() {
	envPaths := []string{".env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		os.Stderr.WriteString("logging init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx := context.Background()
	logging.Info(ctx, "starting chat bus", zap.String("chat_port", cfg.ChatPort))

	rateLimiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		logging.Fatal(ctx, "failed to build rate limiter", zap.Error(err))
	}

	sessions := chat.NewSessionTable()
	rooms := chat.NewRoomRegistry(cfg.RoomBufferSize)
	var ids idgen.Gen
	clock := idgen.SystemClock{}
	router := chat.NewMessageRouter(sessions, rooms, &ids, clock)

	var gwOpts []chat.GatewayOption
	if cfg.AuthEnabled {
		validator, err := auth.NewValidator(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			logging.Fatal(ctx, "failed to build auth validator", zap.Error(err))
		}
		gwOpts = append(gwOpts, chat.WithValidator(validator))
	}
	gateway := chat.NewChatGateway(router, sessions, rooms, &ids, clock, cfg.SessionBufferSize, gwOpts...)
	upgrader := chat.Upgrader(strings.Split(cfg.AllowedOrigins, ","))

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	ginRouter.Use(middleware.CorrelationID())

	ginRouter.GET("/chat", func(c *gin.Context) {
		ip := c.ClientIP()
		if !rateLimiter.CheckWebSocketConnect(c.Request.Context(), ip) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		gateway.ServeWS(c, upgrader)
	})

	health.NewHandler(nil, 0).RegisterRoutes(ginRouter)
	ginRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.ChatPort,
		Handler: ginRouter,
	}

	go func() {
		logging.Info(ctx, "chat bus listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "chat bus server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down chat bus")

	sessions.Broadcast(&chat.ChatMessage{
		ID:        ids.NextMessageID(),
		Type:      chat.TypeSystem,
		Sender:    "system",
		Content:   "Server is shutting down",
		Timestamp: clock.NowMs(),
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "chat bus forced shutdown", zap.Error(err))
	}

	logging.Info(ctx, "chat bus exited")
}
