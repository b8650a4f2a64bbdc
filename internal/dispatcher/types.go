// Package dispatcher implements the SLA-bounded async task dispatcher: a
// request is accepted, processing starts immediately, and the caller gets
// either the finished result or a handle to poll later, depending on
// whether the processor beats the SLA deadline.
package dispatcher

import "errors"

// TaskStatus is the lifecycle state of a TaskRecord.
type TaskStatus string

const (
	StatusProcessing TaskStatus = "PROCESSING"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusFailed     TaskStatus = "FAILED"
)

// DataProcessingRequest is the immutable input to a processing run.
// Complexity is clamped to [1,10] on construction.
type DataProcessingRequest struct {
	Data       string `json:"data"`
	Complexity int    `json:"complexity"`
}

// NewDataProcessingRequest builds a request, clamping complexity to [1,10]
// per spec (values outside the range default/clamp rather than error).
func NewDataProcessingRequest(data string, complexity int) DataProcessingRequest {
	switch {
	case complexity < 1:
		complexity = 1
	case complexity > 10:
		complexity = 10
	}
	return DataProcessingRequest{Data: data, Complexity: complexity}
}

// DataProcessingResult is produced by a successful processor run.
type DataProcessingResult struct {
	ProcessedData string `json:"processedData"`
	Message       string `json:"message"`
	Timestamp     int64  `json:"timestamp"`
	Complexity    int    `json:"complexity"`
}

const successMessage = "Data processed successfully"

// TaskRecord is the unit stored in the TaskTable. Exactly one of Result or
// ErrorMessage is populated once the status reaches a terminal state.
type TaskRecord struct {
	TaskID          string                `json:"taskId"`
	Status          TaskStatus            `json:"status"`
	Result          *DataProcessingResult `json:"result,omitempty"`
	ErrorMessage    string                `json:"errorMessage,omitempty"`
	CreatedAt       int64                 `json:"createdAt"`
	CompletedAt     int64                 `json:"completedAt,omitempty"`
	OriginalRequest DataProcessingRequest `json:"originalRequest"`
}

// Clone returns a deep-enough copy safe to hand to callers without letting
// them mutate the table's internal state through a shared pointer.
func (t TaskRecord) Clone() TaskRecord {
	if t.Result != nil {
		r := *t.Result
		t.Result = &r
	}
	return t
}

var (
	// ErrTaskNotFound is returned when a taskId has no entry in the table,
	// or had a COMPLETED entry already retrieved and removed.
	ErrTaskNotFound = errors.New("dispatcher: task not found")
	// ErrTaskAlreadyExists is returned by InsertInitial on a taskId collision.
	ErrTaskAlreadyExists = errors.New("dispatcher: task already exists")
	// ErrNotProcessing is returned when a conditional update targets a task
	// that is no longer PROCESSING.
	ErrNotProcessing = errors.New("dispatcher: task is not in PROCESSING state")
	// ErrPoolSaturated is returned when the processor worker pool's circuit
	// breaker has tripped open.
	ErrPoolSaturated = errors.New("dispatcher: processor worker pool saturated")
)
