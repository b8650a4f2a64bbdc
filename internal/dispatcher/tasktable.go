package dispatcher

import (
	"hash/fnv"
	"sync"
)

const tableShardCount = 16

// TaskTable is a concurrent registry of TaskRecords, sharded by taskId hash
// so that unrelated tasks never contend on the same lock (spec.md §9: "never
// a single coarse lock").
type TaskTable struct {
	shards [tableShardCount]*tableShard
}

type tableShard struct {
	mu      sync.RWMutex
	records map[string]*TaskRecord
}

// NewTaskTable constructs an empty TaskTable.
func NewTaskTable() *TaskTable {
	tt := &TaskTable{}
	for i := range tt.shards {
		tt.shards[i] = &tableShard{records: make(map[string]*TaskRecord)}
	}
	return tt
}

func (tt *TaskTable) shardFor(taskID string) *tableShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	return tt.shards[h.Sum32()%tableShardCount]
}

// InsertInitial inserts record iff its TaskID is absent. Returns
// ErrTaskAlreadyExists on a collision.
func (tt *TaskTable) InsertInitial(record TaskRecord) error {
	shard := tt.shardFor(record.TaskID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, exists := shard.records[record.TaskID]; exists {
		return ErrTaskAlreadyExists
	}
	rec := record
	shard.records[record.TaskID] = &rec
	return nil
}

// MarkCompleted performs the conditional PROCESSING -> COMPLETED transition.
// Succeeds only if the current status is PROCESSING; terminal status is
// sticky, so a second call returns ErrNotProcessing.
func (tt *TaskTable) MarkCompleted(taskID string, result DataProcessingResult, completedAt int64) error {
	shard := tt.shardFor(taskID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.records[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if rec.Status != StatusProcessing {
		return ErrNotProcessing
	}
	rec.Status = StatusCompleted
	rec.Result = &result
	rec.CompletedAt = completedAt
	return nil
}

// MarkFailed performs the conditional PROCESSING -> FAILED transition.
func (tt *TaskTable) MarkFailed(taskID string, errMsg string, completedAt int64) error {
	shard := tt.shardFor(taskID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.records[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if rec.Status != StatusProcessing {
		return ErrNotProcessing
	}
	rec.Status = StatusFailed
	rec.ErrorMessage = errMsg
	rec.CompletedAt = completedAt
	return nil
}

// Get returns a copy of the current record, or false if absent.
func (tt *TaskTable) Get(taskID string) (TaskRecord, bool) {
	shard := tt.shardFor(taskID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	rec, ok := shard.records[taskID]
	if !ok {
		return TaskRecord{}, false
	}
	return rec.Clone(), true
}

// GetAndMaybeRemove returns the record; if its status is COMPLETED, it is
// also removed from the table within the same critical section. This is the
// semantics the /api/task/result endpoint relies on: a client never sees a
// COMPLETED task twice, and a still-running or failed task is never lost.
func (tt *TaskTable) GetAndMaybeRemove(taskID string) (TaskRecord, bool) {
	shard := tt.shardFor(taskID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.records[taskID]
	if !ok {
		return TaskRecord{}, false
	}
	out := rec.Clone()
	if rec.Status == StatusCompleted {
		delete(shard.records, taskID)
	}
	return out, true
}

// ListIDs returns every taskId currently held in the table. The snapshot is
// weakly consistent: it reflects a committed state at some point during the
// call, not necessarily a single instant across all shards.
func (tt *TaskTable) ListIDs() []string {
	ids := make([]string, 0)
	for _, shard := range tt.shards {
		shard.mu.RLock()
		for id := range shard.records {
			ids = append(ids, id)
		}
		shard.mu.RUnlock()
	}
	return ids
}

// Len returns the current number of tasks held across all shards.
func (tt *TaskTable) Len() int {
	n := 0
	for _, shard := range tt.shards {
		shard.mu.RLock()
		n += len(shard.records)
		shard.mu.RUnlock()
	}
	return n
}
