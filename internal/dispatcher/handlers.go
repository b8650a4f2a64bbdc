package dispatcher

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/taskbus/internal/logging"
)

// Handler exposes the Dispatcher over HTTP.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler wraps a Dispatcher for routing.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

type processRequestBody struct {
	Data       string `json:"data" binding:"required"`
	Complexity int    `json:"complexity"`
}

// Process handles POST /api/process.
//
// Responds 200 with the completed TaskRecord if the Processor beats the SLA,
// 202 with a PROCESSING handle if it doesn't, or 500 if the Processor fails
// within the SLA window.
func (h *Handler) Process(c *gin.Context) {
	var body processRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	req := NewDataProcessingRequest(body.Data, body.Complexity)
	status, record := h.dispatcher.Submit(c.Request.Context(), req)

	logging.Info(c.Request.Context(), "task submitted", zap.String("task_id", record.TaskID))

	c.JSON(status, record)
}

// Result handles GET /api/task/result/:taskId.
//
// A COMPLETED record is returned once; subsequent polls after retrieval get
// 404 because the record was removed on first successful read.
func (h *Handler) Result(c *gin.Context) {
	taskID := c.Param("taskId")
	record, ok := h.dispatcher.Result(taskID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// List handles GET /api/task/list, responding with a bare array of task ids.
func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.dispatcher.List())
}

// RegisterRoutes wires the dispatcher endpoints onto an existing gin router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/process", h.Process)
	api.GET("/task/result/:taskId", h.Result)
	api.GET("/task/list", h.List)
}
