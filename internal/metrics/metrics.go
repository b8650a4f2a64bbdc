package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the dispatcher and chat-bus services.
//
// Naming convention: namespace_subsystem_name
// - namespace: taskbus (application-level grouping)
// - subsystem: dispatcher, room, session, router, rate_limit, circuit_breaker
// - name: specific metric (tasks_active, drop_count_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, active tasks, rooms)
// - Counter: Cumulative events (dropped messages, rejected routes)
// - Histogram: Latency distributions (processing time)

var (
	// ActiveWebSocketConnections tracks the current number of chat sessions.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskbus",
		Subsystem: "session",
		Name:      "connections_active",
		Help:      "Current number of active chat sessions",
	})

	// ActiveRooms tracks the current number of active rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskbus",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomMembers tracks the number of members in each room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "taskbus",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"room_id"})

	// RoomDropCount counts messages dropped by a room's bounded fan-out sink.
	RoomDropCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbus",
		Subsystem: "room",
		Name:      "drop_count_total",
		Help:      "Total messages dropped from a room's fan-out buffer on overflow",
	}, []string{"room_id"})

	// SessionDropCount counts messages dropped by a session's outbound queue.
	SessionDropCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbus",
		Subsystem: "session",
		Name:      "drop_count_total",
		Help:      "Total messages dropped from a session's outbound buffer on overflow",
	}, []string{"user_id"})

	// RouterRejected counts inbound messages the router refused to dispatch.
	RouterRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbus",
		Subsystem: "router",
		Name:      "rejected_total",
		Help:      "Total inbound chat messages rejected by the router",
	}, []string{"reason"})

	// WebsocketEvents tracks the total number of WebSocket events processed.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbus",
		Subsystem: "session",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks the time spent routing chat messages.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskbus",
		Subsystem: "router",
		Name:      "message_processing_seconds",
		Help:      "Time spent routing chat messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// TasksActive tracks the current number of tasks whose processor run is
	// still in flight.
	TasksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskbus",
		Subsystem: "dispatcher",
		Name:      "tasks_active",
		Help:      "Current number of tasks whose processor run is in flight",
	})

	// TasksCompletedWithinSLA counts submissions by how Submit resolved them:
	// completed before the SLA fired, SLA timeout, or failed before the SLA.
	TasksCompletedWithinSLA = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbus",
		Subsystem: "dispatcher",
		Name:      "completed_total",
		Help:      "Total submissions resolved by outcome (sla_hit, sla_timeout, failed)",
	}, []string{"outcome"})

	// ProcessorDuration tracks the observed processor execution time.
	ProcessorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "taskbus",
		Subsystem: "dispatcher",
		Name:      "processor_duration_seconds",
		Help:      "Observed duration of processor executions",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// CircuitBreakerState tracks the current state of the worker-pool circuit
	// breaker (0: Closed, 1: Open, 2: Half-Open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "taskbus",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by the circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbus",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbus",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbus",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
