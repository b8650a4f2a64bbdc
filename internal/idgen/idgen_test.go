package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGen_NextTaskID_Unique(t *testing.T) {
	var g Gen
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.NextTaskID()
		assert.False(t, seen[id], "duplicate task id generated: %s", id)
		seen[id] = true
	}
}

func TestGen_NextMessageID_Monotonic(t *testing.T) {
	var g Gen
	prev := int64(0)
	for i := 0; i < 50; i++ {
		id := g.NextMessageID()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestGen_ConcurrentUse(t *testing.T) {
	var g Gen
	var wg sync.WaitGroup
	results := make(chan string, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- g.NextTaskID()
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for id := range results {
		assert.False(t, seen[id], "duplicate task id under concurrency: %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 200)
}

func TestSystemClock_NowMs(t *testing.T) {
	c := SystemClock{}
	ms := c.NowMs()
	assert.Greater(t, ms, int64(0))
}
