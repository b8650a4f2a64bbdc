package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/taskbus/internal/auth"
	"github.com/example/taskbus/internal/config"
	"github.com/example/taskbus/internal/dispatcher"
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
	logging.Info(ctx, "starting dispatcher", zap.String("http_port", cfg.HTTPPort), zap.Duration("sla", cfg.DispatcherSLA))

	rateLimiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		logging.Fatal(ctx, "failed to build rate limiter", zap.Error(err))
	}

	table := dispatcher.NewTaskTable()
	var ids idgen.Gen
	clock := idgen.SystemClock{}
	processor := dispatcher.NewSimulatedProcessor(clock)
	pool := dispatcher.NewWorkerPool(processor, 64)
	svc := dispatcher.New(table, pool, &ids, clock, cfg.DispatcherSLA)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.AllowedOrigins}
	router.Use(cors.New(corsConfig))

	router.Use(rateLimiter.ProcessMiddleware())

	if cfg.AuthEnabled {
		validator, err := auth.NewValidator(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			logging.Fatal(ctx, "failed to build auth validator", zap.Error(err))
		}
		router.Use(middleware.Auth(validator))
	}

	dispatcher.NewHandler(svc).RegisterRoutes(router)
	health.NewHandler(table, 0).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "dispatcher listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "dispatcher server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down dispatcher")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "dispatcher forced shutdown", zap.Error(err))
	}

	logging.Info(ctx, "dispatcher exited")
}
