package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_List_EmptyReturnsBareEmptyArray(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(&blockingProcessor{delay: time.Millisecond}, time.Second)
	h := NewHandler(d)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/task/list", nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestHandler_List_ReturnsBareArrayOfTaskIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(&blockingProcessor{delay: time.Hour}, 10*time.Millisecond)
	h := NewHandler(d)

	_, record := d.Submit(context.Background(), NewDataProcessingRequest("x", 1))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/task/list", nil)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)

	var ids []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
	assert.Equal(t, []string{record.TaskID}, ids)
}

func TestHandler_Process_CompletesWithinSLA(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(&blockingProcessor{delay: time.Millisecond}, time.Second)
	h := NewHandler(d)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/process", strings.NewReader(`{"data":"x","complexity":1}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Process(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var record TaskRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, StatusCompleted, record.Status)
}

func TestHandler_Result_NotFoundReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newTestDispatcher(&blockingProcessor{delay: time.Millisecond}, time.Second)
	h := NewHandler(d)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/task/result/missing", nil)
	c.Params = gin.Params{{Key: "taskId", Value: "missing"}}

	h.Result(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
