package concurrency

import (
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageQueue_ExactCapacity(t *testing.T) {
	q := NewMessageQueue(3)
	assert.Equal(t, 3, q.Capacity())

	for i := 0; i < 3; i++ {
		require.True(t, q.TryEnqueue([]byte{byte(i)}))
	}
	assert.False(t, q.TryEnqueue([]byte{9}), "ring has room for four but capacity is three")
	assert.False(t, q.HasRoom())
	assert.Equal(t, 3, q.Remaining())
}

func TestMessageQueue_RemainingCountsCurrent(t *testing.T) {
	q := NewMessageQueue(2)
	require.True(t, q.TryEnqueue([]byte("a")))
	require.True(t, q.TryEnqueue([]byte("b")))

	msg, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", string(msg))
	assert.Equal(t, 2, q.Remaining(), "dequeued message still in flight")
	assert.False(t, q.TryEnqueue([]byte("c")))

	q.Release()
	assert.Equal(t, 1, q.Remaining())
	assert.True(t, q.TryEnqueue([]byte("c")))
}

func TestMessageQueue_DrainTo(t *testing.T) {
	q := NewMessageQueue(4)
	for _, s := range []string{"x", "y", "z"} {
		require.True(t, q.TryEnqueue([]byte(s)))
	}
	out := q.DrainTo([][]byte{[]byte("head")})
	assert.Equal(t, [][]byte{[]byte("head"), []byte("x"), []byte("y"), []byte("z")}, out)
	assert.Zero(t, q.Remaining())
	assert.True(t, q.HasRoom())
}

func TestMessageQueue_ConcurrentProducersNeverExceedCapacity(t *testing.T) {
	const (
		capacity  = 64
		producers = 8
		perThread = 2000
	)
	q := NewMessageQueue(capacity)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perThread; i++ {
				msg := []byte(fmt.Sprintf("%d:%d", p, i))
				for !q.TryEnqueue(msg) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	next := make(map[int]int, producers)
	for got := 0; got < producers*perThread; {
		r := q.Remaining()
		require.LessOrEqual(t, r, capacity)
		require.GreaterOrEqual(t, r, 0)
		msg, ok := q.TryDequeue()
		if !ok {
			runtime.Gosched()
			continue
		}
		var p, i int
		_, err := fmt.Sscanf(string(msg), "%d:%d", &p, &i)
		require.NoError(t, err)
		require.Equal(t, next[p], i, "producer %d out of order", p)
		next[p]++
		q.Release()
		got++
	}
	wg.Wait()
	assert.Zero(t, q.Remaining())
}

func TestMessageQueue_MinimumCapacity(t *testing.T) {
	q := NewMessageQueue(0)
	assert.Equal(t, 1, q.Capacity())
	assert.True(t, q.TryEnqueue(nil))
	assert.False(t, q.TryEnqueue(nil))
}
