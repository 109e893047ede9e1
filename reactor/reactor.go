// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral pieces of the multiplexer.

package reactor

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-writer/api"
)

// DefaultBatchSize is the number of events requested from the kernel per wait.
const DefaultBatchSize = 1

// registry maps handles to callbacks. Lookups take a read-only snapshot of
// the entry so that an unregister during dispatch does not affect the
// in-flight call.
type registry struct {
	mu        sync.RWMutex
	callbacks map[int]api.EventCallback
}

func newRegistry() *registry {
	return &registry{callbacks: make(map[int]api.EventCallback)}
}

func (r *registry) set(fd int, cb api.EventCallback) {
	r.mu.Lock()
	r.callbacks[fd] = cb
	r.mu.Unlock()
}

func (r *registry) del(fd int) {
	r.mu.Lock()
	delete(r.callbacks, fd)
	r.mu.Unlock()
}

func (r *registry) get(fd int) (api.EventCallback, bool) {
	r.mu.RLock()
	cb, ok := r.callbacks[fd]
	r.mu.RUnlock()
	return cb, ok
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// purge drops pending events that belong to fd.
func purge(q *queue.Queue, fd int) {
	for i, n := 0, q.Length(); i < n; i++ {
		ev := q.Remove().(api.Event)
		if ev.Fd != fd {
			q.Add(ev)
		}
	}
}

// dispatch runs cb and turns a panic into an error for the caller.
func dispatch(cb api.EventCallback, ev api.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = api.PanicError("event callback", r).WithContext("fd", ev.Fd)
		}
	}()
	cb(ev)
	return nil
}
