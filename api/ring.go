// Package api
// Author: momentics@gmail.com
//
// Lock-free ring buffer for cross-thread producer/consumer.

package api

// Ring is a bounded lock-free queue contract.
type Ring[T any] interface {
    // Enqueue adds an item, returns false if full.
    Enqueue(item T) bool
    // Dequeue removes oldest item, returns false if empty.
    Dequeue() (T, bool)
    // Cap returns buffer capacity.
    Cap() int
}
