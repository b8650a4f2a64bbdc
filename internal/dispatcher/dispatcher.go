package dispatcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/taskbus/internal/idgen"
	"github.com/example/taskbus/internal/logging"
	"github.com/example/taskbus/internal/metrics"
)

// Dispatcher glues request ingestion to the worker pool, enforcing an SLA
// deadline and arranging background continuation on timeout.
type Dispatcher struct {
	table *TaskTable
	pool  *WorkerPool
	ids   *idgen.Gen
	clock idgen.Clock
	sla   time.Duration
}

// New builds a Dispatcher bounded by sla (spec default: 30s).
func New(table *TaskTable, pool *WorkerPool, ids *idgen.Gen, clock idgen.Clock, sla time.Duration) *Dispatcher {
	return &Dispatcher{table: table, pool: pool, ids: ids, clock: clock, sla: sla}
}

type taskOutcome struct {
	result DataProcessingResult
	err    error
}

// Submit runs req under the SLA and returns the HTTP status the caller
// should reply with, plus the TaskRecord as of that decision.
//
// The background Processor run is launched on context.Background(), not on
// ctx (the request's context): a client disconnect or handler-scoped
// cancellation must never interrupt work that has already been handed to
// the worker pool, because a 202 handle promises the work is still
// happening.
func (d *Dispatcher) Submit(ctx context.Context, req DataProcessingRequest) (int, TaskRecord) {
	taskID := d.ids.NextTaskID()
	now := d.clock.NowMs()

	record := TaskRecord{
		TaskID:          taskID,
		Status:          StatusProcessing,
		CreatedAt:       now,
		OriginalRequest: req,
	}
	if err := d.table.InsertInitial(record); err != nil {
		// IdGen guarantees uniqueness; a collision here means a caller reused
		// a generator across dispatchers. Surface it as a failed task rather
		// than panicking.
		logging.Error(ctx, "task id collision on submit", zap.String("task_id", taskID), zap.Error(err))
		record.Status = StatusFailed
		record.ErrorMessage = err.Error()
		return 500, record
	}

	metrics.TasksActive.Inc()
	done := make(chan taskOutcome, 1)

	go func() {
		defer metrics.TasksActive.Dec()
		bg := context.Background()
		start := time.Now()
		result, err := d.pool.Submit(bg, req)
		metrics.ProcessorDuration.Observe(time.Since(start).Seconds())

		completedAt := d.clock.NowMs()
		if err != nil {
			_ = d.table.MarkFailed(taskID, err.Error(), completedAt)
		} else {
			_ = d.table.MarkCompleted(taskID, result, completedAt)
		}
		done <- taskOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(d.sla)
	defer timer.Stop()

	select {
	case outcome := <-done:
		rec, _ := d.table.Get(taskID)
		if outcome.err != nil {
			metrics.TasksCompletedWithinSLA.WithLabelValues("failed").Inc()
			return 500, rec
		}
		metrics.TasksCompletedWithinSLA.WithLabelValues("sla_hit").Inc()
		return 200, rec
	case <-timer.C:
		metrics.TasksCompletedWithinSLA.WithLabelValues("sla_timeout").Inc()
		rec, _ := d.table.Get(taskID)
		return 202, rec
	}
}

// Result implements the polling endpoint. Polling a PROCESSING or FAILED
// record is idempotent; a COMPLETED record is returned once and then removed.
func (d *Dispatcher) Result(taskID string) (TaskRecord, bool) {
	return d.table.GetAndMaybeRemove(taskID)
}

// List returns every taskId currently tracked.
func (d *Dispatcher) List() []string {
	return d.table.ListIDs()
}
