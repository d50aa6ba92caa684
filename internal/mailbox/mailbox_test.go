package mailbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	m := New()
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Put(i))
	}
	for i := 0; i < 100; i++ {
		msg, timedOut, err := m.Take(0)
		require.NoError(t, err)
		require.False(t, timedOut)
		assert.Equal(t, i, msg)
	}
}

func TestLen(t *testing.T) {
	m := New()
	assert.Zero(t, m.Len())

	require.NoError(t, m.Put("a"))
	require.NoError(t, m.Put("b"))
	assert.Equal(t, 2, m.Len())

	_, _, err := m.Take(0)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestTakeTimesOut(t *testing.T) {
	m := New()
	start := time.Now()
	msg, timedOut, err := m.Take(30 * time.Millisecond)
	require.NoError(t, err)
	assert.True(t, timedOut)
	assert.Nil(t, msg)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestTakeWakesOnPut(t *testing.T) {
	m := New()
	got := make(chan any, 1)
	go func() {
		msg, _, _ := m.Take(0)
		got <- msg
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Put("wake"))

	select {
	case msg := <-got:
		assert.Equal(t, "wake", msg)
	case <-time.After(time.Second):
		t.Fatal("consumer never woke up")
	}
}

func TestCloseDrainsThenErrors(t *testing.T) {
	m := New()
	require.NoError(t, m.Put("pending"))
	m.Close()

	assert.ErrorIs(t, m.Put("late"), ErrClosed)

	msg, timedOut, err := m.Take(0)
	require.NoError(t, err)
	require.False(t, timedOut)
	assert.Equal(t, "pending", msg)

	_, _, err = m.Take(0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentProducers(t *testing.T) {
	m := New()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = m.Put(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		_, timedOut, err := m.Take(10 * time.Millisecond)
		if err != nil || timedOut {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}
