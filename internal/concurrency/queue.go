// File: internal/concurrency/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// MessageQueue is the outgoing queue of a writer source.

package concurrency

import "sync/atomic"

// MessageQueue is a bounded FIFO of owned byte messages with many producers
// and exactly one consumer.
//
// remaining counts the messages in the ring plus the one the consumer holds
// as its current message, so it only drops when the consumer calls Release.
// Admission reserves a unit of remaining before the message becomes visible,
// which keeps the capacity exact and the count from under-reporting.
type MessageQueue struct {
	ring      *LockFreeQueue[[]byte]
	capacity  int64
	remaining atomic.Int64
}

// NewMessageQueue creates a queue accepting at most capacity messages.
func NewMessageQueue(capacity int) *MessageQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MessageQueue{
		ring:     NewLockFreeQueue[[]byte](capacity),
		capacity: int64(capacity),
	}
}

// TryEnqueue appends msg. It returns false, leaving the queue untouched, when
// capacity is exhausted.
func (q *MessageQueue) TryEnqueue(msg []byte) bool {
	for {
		n := q.remaining.Load()
		if n >= q.capacity {
			return false
		}
		if q.remaining.CompareAndSwap(n, n+1) {
			break
		}
	}
	if !q.ring.Enqueue(msg) {
		q.remaining.Add(-1)
		return false
	}
	return true
}

// TryDequeue pops the oldest message. Consumer only. The message still counts
// toward Remaining until Release is called for it.
func (q *MessageQueue) TryDequeue() ([]byte, bool) {
	return q.ring.Dequeue()
}

// Release retires one dequeued message.
func (q *MessageQueue) Release() {
	q.remaining.Add(-1)
}

// DrainTo dequeues and releases every queued message, appending them to dst.
func (q *MessageQueue) DrainTo(dst [][]byte) [][]byte {
	for {
		msg, ok := q.ring.Dequeue()
		if !ok {
			return dst
		}
		q.remaining.Add(-1)
		dst = append(dst, msg)
	}
}

// Remaining returns queued messages plus the one held by the consumer.
func (q *MessageQueue) Remaining() int {
	return int(q.remaining.Load())
}

// Capacity returns the admission limit.
func (q *MessageQueue) Capacity() int {
	return int(q.capacity)
}

// HasRoom reports whether an enqueue would currently be admitted.
func (q *MessageQueue) HasRoom() bool {
	return q.remaining.Load() < q.capacity
}
