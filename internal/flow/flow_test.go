package flow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorAccumulates(t *testing.T) {
	c := NewCollector()
	c.Results("map", 1)
	c.Results("map", 2)
	c.Results("reduce", "done")

	assert.Equal(t, []any{1, 2}, c.StageResults("map"))
	assert.Equal(t, []any{"done"}, c.StageResults("reduce"))
	assert.Empty(t, c.StageResults("unknown"))

	snapshot := c.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, []any{1, 2}, snapshot["map"])
}

func TestCollectorComplete(t *testing.T) {
	c := NewCollector()

	select {
	case <-c.Done():
		t.Fatal("collector completed before Complete was called")
	default:
	}

	c.Complete()
	c.Complete() // repeat calls are harmless

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Complete")
	}
}

func TestCollectorConcurrentResults(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Results("s", j)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, c.StageResults("s"), 1000)
}
