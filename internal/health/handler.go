// Package health exposes liveness and readiness probes for the dispatcher
// and chat-bus processes.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TaskCounter reports how many tasks the dispatcher's task table holds
// (running, or finished and not yet retrieved), used by the readiness probe
// to flag an overloaded dispatcher.
type TaskCounter interface {
	Len() int
}

// Handler manages health check endpoints.
type Handler struct {
	tasks       TaskCounter
	maxInFlight int
}

// NewHandler builds a Handler. tasks may be nil for services (e.g. the chat
// gateway) that don't track a task table; maxInFlight <= 0 disables the
// overload check.
func NewHandler(tasks TaskCounter, maxInFlight int) *Handler {
	return &Handler{tasks: tasks, maxInFlight: maxInFlight}
}

// LivenessResponse is the liveness probe body.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the readiness probe body.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /api/health: the top-level check, answering with a bare
// health string rather than the live/ready breakdown.
func (h *Handler) Health(c *gin.Context) {
	status := "healthy"
	if h.checkWorkerPool() != "healthy" {
		status = "unhealthy"
	}
	c.String(http.StatusOK, status)
}

// Liveness handles GET /api/health/live. Returns 200 if the process is
// alive; it performs no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /api/health/ready. Returns 503 if the worker pool
// looks saturated (held task count at or above maxInFlight).
func (h *Handler) Readiness(c *gin.Context) {
	checks := make(map[string]string)
	allHealthy := true

	poolStatus := h.checkWorkerPool()
	checks["worker_pool"] = poolStatus
	if poolStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) checkWorkerPool() string {
	if h.tasks == nil || h.maxInFlight <= 0 {
		return "healthy"
	}
	if h.tasks.Len() >= h.maxInFlight {
		return "unhealthy"
	}
	return "healthy"
}

// RegisterRoutes wires the health endpoints onto an existing gin router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/health")
	api.GET("", h.Health)
	api.GET("/live", h.Liveness)
	api.GET("/ready", h.Readiness)
}
