// Package idgen provides the wall clock and monotonic id generation shared by the
// dispatcher and chat-bus services. Scope is per process, so a single
// in-memory counter is sufficient.
package idgen

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Clock abstracts wall-clock time so tests can inject deterministic values.
type Clock interface {
	NowMs() int64
}

// SystemClock is the real-time Clock backed by time.Now().
type SystemClock struct{}

// NowMs returns the current time as epoch milliseconds.
func (SystemClock) NowMs() int64 {
	return time.Now().UnixMilli()
}

// Gen is a process-local monotonic id generator. The zero value is ready to
// use; all methods are safe for concurrent use.
type Gen struct {
	counter atomic.Int64
}

// NextTaskID returns a unique "task-<n>" identifier. The format is
// convenient for humans reading logs; nothing in the dispatcher depends on
// it beyond uniqueness.
func (g *Gen) NextTaskID() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("task-%d", n)
}

// NextMessageID returns a raw monotonically-increasing counter value, used
// as the ChatMessage.id on every outbound frame.
func (g *Gen) NextMessageID() int64 {
	return g.counter.Add(1)
}
