// Package config loads and validates environment configuration shared by the
// dispatcher and chat-bus services.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for both services.
type Config struct {
	// Dispatcher (HTTP)
	HTTPPort      string
	DispatcherSLA time.Duration
	ShutdownGrace time.Duration

	// Chat bus (WebSocket)
	ChatPort          string
	RoomBufferSize    int
	SessionBufferSize int

	// Ambient
	GoEnv          string
	LogLevel       string
	AllowedOrigins string

	// Optional auth. Spec treats auth beyond a client-supplied username as a
	// non-goal, so this stays disabled unless explicitly turned on.
	AuthEnabled   bool
	Auth0Domain   string
	Auth0Audience string

	// Ingress rate limits (ambient outer-surface protection, not domain logic).
	RateLimitAPIProcess string
	RateLimitWSConnect  string
}

// Load validates all recognized environment variables and returns a Config.
// Returns an error if any required variable is invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.HTTPPort = getEnvOrDefault("HTTP_PORT", "8081")
	if !isValidPort(cfg.HTTPPort) {
		errs = append(errs, fmt.Sprintf("HTTP_PORT must be a valid port number (got %q)", cfg.HTTPPort))
	}

	cfg.ChatPort = getEnvOrDefault("CHAT_PORT", "8082")
	if !isValidPort(cfg.ChatPort) {
		errs = append(errs, fmt.Sprintf("CHAT_PORT must be a valid port number (got %q)", cfg.ChatPort))
	}

	if slaMs, err := strconv.Atoi(getEnvOrDefault("DISPATCHER_SLA_MS", "30000")); err != nil || slaMs <= 0 {
		errs = append(errs, fmt.Sprintf("DISPATCHER_SLA_MS must be a positive integer (got %q)", os.Getenv("DISPATCHER_SLA_MS")))
	} else {
		cfg.DispatcherSLA = time.Duration(slaMs) * time.Millisecond
	}

	if graceMs, err := strconv.Atoi(getEnvOrDefault("SHUTDOWN_GRACE_MS", "5000")); err != nil || graceMs < 0 {
		errs = append(errs, fmt.Sprintf("SHUTDOWN_GRACE_MS must be a non-negative integer (got %q)", os.Getenv("SHUTDOWN_GRACE_MS")))
	} else {
		cfg.ShutdownGrace = time.Duration(graceMs) * time.Millisecond
	}

	if v, err := strconv.Atoi(getEnvOrDefault("ROOM_BUFFER_SIZE", "256")); err != nil || v <= 0 {
		errs = append(errs, fmt.Sprintf("ROOM_BUFFER_SIZE must be a positive integer (got %q)", os.Getenv("ROOM_BUFFER_SIZE")))
	} else {
		cfg.RoomBufferSize = v
	}

	if v, err := strconv.Atoi(getEnvOrDefault("SESSION_BUFFER_SIZE", "64")); err != nil || v <= 0 {
		errs = append(errs, fmt.Sprintf("SESSION_BUFFER_SIZE must be a positive integer (got %q)", os.Getenv("SESSION_BUFFER_SIZE")))
	} else {
		cfg.SessionBufferSize = v
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")

	cfg.AuthEnabled = os.Getenv("AUTH_ENABLED") == "true"
	if cfg.AuthEnabled {
		cfg.Auth0Domain = os.Getenv("AUTH0_DOMAIN")
		cfg.Auth0Audience = os.Getenv("AUTH0_AUDIENCE")
		if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
			errs = append(errs, "AUTH0_DOMAIN and AUTH0_AUDIENCE are required when AUTH_ENABLED=true")
		}
	}

	cfg.RateLimitAPIProcess = getEnvOrDefault("RATE_LIMIT_API_PROCESS", "120-M")
	cfg.RateLimitWSConnect = getEnvOrDefault("RATE_LIMIT_WS_CONNECT", "30-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func isValidPort(s string) bool {
	port, err := strconv.Atoi(s)
	return err == nil && port >= 1 && port <= 65535
}

func logValidatedConfig(cfg *Config) {
	slog.Info("✅ configuration validated",
		"http_port", cfg.HTTPPort,
		"chat_port", cfg.ChatPort,
		"dispatcher_sla", cfg.DispatcherSLA,
		"room_buffer_size", cfg.RoomBufferSize,
		"session_buffer_size", cfg.SessionBufferSize,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"auth_enabled", cfg.AuthEnabled,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
