package dispatcher

import (
	"context"
	"math"
	"time"
)

// Processor turns a request into a result. Its only implementation,
// simulatedProcessor, models CPU-bound work as a sleep whose duration is a
// deterministic function of Complexity, so tests can reason about timing
// without flakiness from real work.
type Processor interface {
	Process(ctx context.Context, req DataProcessingRequest) (DataProcessingResult, error)
}

// simulatedProcessor implements Processor by sleeping for a duration derived
// from the request's Complexity and then deriving ProcessedData.
type simulatedProcessor struct {
	clock interface{ NowMs() int64 }
}

// NewSimulatedProcessor builds the default Processor, using clock to stamp
// results.
func NewSimulatedProcessor(clock interface{ NowMs() int64 }) Processor {
	return &simulatedProcessor{clock: clock}
}

// processingDuration maps complexity in [1,10] onto a duration between 6s and
// 60s: duration_ms = ceil( ((c-1)/9 * 0.9 + 0.1) * 60000 ). Complexity 1 takes
// 10% of the 60s ceiling (6s); complexity 10 takes the full 60s, comfortably
// past the 30s SLA so dispatcher races genuinely exercise both outcomes.
func processingDuration(complexity int) time.Duration {
	c := float64(complexity)
	fraction := (c-1)/9*0.9 + 0.1
	ms := math.Ceil(fraction * 60000)
	return time.Duration(ms) * time.Millisecond
}

// deriveProcessedData is the frozen transformation applied to request data.
func deriveProcessedData(data string) string {
	return data + " - processed"
}

func (p *simulatedProcessor) Process(ctx context.Context, req DataProcessingRequest) (DataProcessingResult, error) {
	d := processingDuration(req.Complexity)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return DataProcessingResult{}, ctx.Err()
	}

	return DataProcessingResult{
		ProcessedData: deriveProcessedData(req.Data),
		Message:       successMessage,
		Timestamp:     p.clock.NowMs(),
		Complexity:    req.Complexity,
	}, nil
}
