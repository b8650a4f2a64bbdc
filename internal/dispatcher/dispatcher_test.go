package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskbus/internal/idgen"
)

// blockingProcessor sleeps for a caller-controlled duration, letting tests
// force either the fast-completion or the SLA-timeout branch of Submit.
type blockingProcessor struct {
	delay    time.Duration
	failWith error
}

func (p *blockingProcessor) Process(ctx context.Context, req DataProcessingRequest) (DataProcessingResult, error) {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return DataProcessingResult{}, ctx.Err()
	}
	if p.failWith != nil {
		return DataProcessingResult{}, p.failWith
	}
	return DataProcessingResult{ProcessedData: deriveProcessedData(req.Data)}, nil
}

func newTestDispatcher(proc Processor, sla time.Duration) *Dispatcher {
	table := NewTaskTable()
	pool := NewWorkerPool(proc, 8)
	var ids idgen.Gen
	return New(table, pool, &ids, idgen.SystemClock{}, sla)
}

func TestDispatcher_Submit_CompletesWithinSLA(t *testing.T) {
	d := newTestDispatcher(&blockingProcessor{delay: 5 * time.Millisecond}, 50*time.Millisecond)

	status, rec := d.Submit(context.Background(), NewDataProcessingRequest("hi", 1))

	assert.Equal(t, 200, status)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "hi - processed", rec.Result.ProcessedData)
}

func TestDispatcher_Submit_FailsWithinSLA(t *testing.T) {
	d := newTestDispatcher(&blockingProcessor{delay: 5 * time.Millisecond, failWith: errors.New("boom")}, 50*time.Millisecond)

	status, rec := d.Submit(context.Background(), NewDataProcessingRequest("hi", 1))

	assert.Equal(t, 500, status)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "boom", rec.ErrorMessage)
}

func TestDispatcher_Submit_TimesOutThenCompletesInBackground(t *testing.T) {
	d := newTestDispatcher(&blockingProcessor{delay: 40 * time.Millisecond}, 10*time.Millisecond)

	status, rec := d.Submit(context.Background(), NewDataProcessingRequest("hi", 1))
	require.Equal(t, 202, status)
	require.Equal(t, StatusProcessing, rec.Status)

	// poll until the detached background goroutine finishes the update
	require.Eventually(t, func() bool {
		got, ok := d.Result(rec.TaskID)
		return ok && got.Status == StatusCompleted
	}, 500*time.Millisecond, 5*time.Millisecond)
}

// TestDispatcher_Submit_RequestCancellationDoesNotInterruptProcessor is the
// core invariant from the design: once a task is handed to the worker pool,
// cancelling the caller's context must not cancel the background run.
func TestDispatcher_Submit_RequestCancellationDoesNotInterruptProcessor(t *testing.T) {
	d := newTestDispatcher(&blockingProcessor{delay: 30 * time.Millisecond}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	status, rec := d.Submit(ctx, NewDataProcessingRequest("hi", 1))
	require.Equal(t, 202, status)

	// simulate the HTTP client disconnecting right after getting the handle
	cancel()

	require.Eventually(t, func() bool {
		got, ok := d.Result(rec.TaskID)
		return ok && got.Status == StatusCompleted
	}, 500*time.Millisecond, 5*time.Millisecond, "processor must complete despite request cancellation")
}

func TestDispatcher_Result_NotFound(t *testing.T) {
	d := newTestDispatcher(&blockingProcessor{delay: time.Millisecond}, time.Second)
	_, ok := d.Result("nope")
	assert.False(t, ok)
}

func TestDispatcher_List(t *testing.T) {
	d := newTestDispatcher(&blockingProcessor{delay: 20 * time.Millisecond}, time.Second)
	_, rec1 := d.Submit(context.Background(), NewDataProcessingRequest("a", 1))

	ids := d.List()
	assert.Contains(t, ids, rec1.TaskID)
}
