// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the contract of the readiness multiplexer that backs every writer
// source, and the event record it hands to per-handle callbacks.

package api

import "time"

// Interest describes what readiness a registered handle is watched for.
type Interest struct {
	Read    bool
	Write   bool
	OneShot bool // disarm after one delivered event; re-arm with Modify
}

// Event encapsulates one OS-level readiness notification.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
	Error    bool
	Hangup   bool
}

// EventCallback handles one event for a registered handle.
type EventCallback func(ev Event)

// Multiplexer defines the readiness set plus the handle -> callback registry.
type Multiplexer interface {
	// Fd returns the handle a host loop can poll for readiness of the set itself.
	Fd() int

	// Add registers fd; fails if fd is already present.
	Add(fd int, in Interest) error

	// Modify changes interest for fd; fails if fd is not present.
	Modify(fd int, in Interest) error

	// Remove drops fd from the set. Removing an absent fd is not an error.
	Remove(fd int) error

	RegisterCallback(fd int, cb EventCallback)
	UnregisterCallback(fd int)

	// WaitOne waits up to timeout (negative blocks) and dispatches at most one event.
	WaitOne(timeout time.Duration) (bool, error)

	// Close releases the kernel object.
	Close() error
}
