package dispatcher

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/example/taskbus/internal/metrics"
)

// WorkerPool bounds concurrent Processor.Process calls and wraps them in a
// circuit breaker, mirroring the SFU client's gobreaker guard: a burst of
// processor failures trips the breaker open rather than letting requests
// pile up behind a saturated pool.
type WorkerPool struct {
	processor Processor
	sem       chan struct{}
	cb        *gobreaker.CircuitBreaker
}

// NewWorkerPool builds a pool bounded to maxConcurrent in-flight Process
// calls, guarded by a circuit breaker named "processor".
func NewWorkerPool(processor Processor, maxConcurrent int) *WorkerPool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	st := gobreaker.Settings{
		Name:        "processor",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	}

	return &WorkerPool{
		processor: processor,
		sem:       make(chan struct{}, maxConcurrent),
		cb:        gobreaker.NewCircuitBreaker(st),
	}
}

// Submit runs req through the processor, blocking until a pool slot frees up
// or ctx is cancelled. ErrPoolSaturated is returned when the breaker is open.
func (p *WorkerPool) Submit(ctx context.Context, req DataProcessingRequest) (DataProcessingResult, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return DataProcessingResult{}, ctx.Err()
	}
	defer func() { <-p.sem }()

	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.processor.Process(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.CircuitBreakerFailures.WithLabelValues("processor").Inc()
			return DataProcessingResult{}, ErrPoolSaturated
		}
		return DataProcessingResult{}, err
	}
	return out.(DataProcessingResult), nil
}
