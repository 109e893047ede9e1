// Package fake provides scripted endpoints for testing writer sources.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"
	"syscall"

	"github.com/momentics/hioload-writer/api"
)

var _ api.Endpoint = (*Endpoint)(nil)

// Endpoint wraps a real descriptor-backed endpoint, so readiness still comes
// from the kernel, and scripts the outcome of writes.
type Endpoint struct {
	api.Endpoint

	mu         sync.Mutex
	maxWrite   int   // bytes accepted per Write; 0 is unlimited
	blockAfter int   // successful writes before every Write would block; 0 disables
	blocked    bool  // every Write would block
	failWith   error // every Write fails with this error

	WriteFunc  func(p []byte) (int, error) // optional override, called under no lock
	WriteCalls [][]byte                    // bytes offered to each Write call
	Accepted   int                         // successful writes so far
	CloseCalls int
}

// NewEndpoint wraps inner.
func NewEndpoint(inner api.Endpoint) *Endpoint {
	return &Endpoint{Endpoint: inner}
}

// LimitWrites caps the bytes accepted by each Write.
func (e *Endpoint) LimitWrites(n int) *Endpoint {
	e.mu.Lock()
	e.maxWrite = n
	e.mu.Unlock()
	return e
}

// BlockAfter makes Write return EAGAIN once n writes have succeeded.
func (e *Endpoint) BlockAfter(n int) *Endpoint {
	e.mu.Lock()
	e.blockAfter = n
	e.mu.Unlock()
	return e
}

// SetBlocked forces every Write to return EAGAIN until cleared.
func (e *Endpoint) SetBlocked(b bool) {
	e.mu.Lock()
	e.blocked = b
	e.mu.Unlock()
}

// FailWith makes every Write fail with err.
func (e *Endpoint) FailWith(err error) *Endpoint {
	e.mu.Lock()
	e.failWith = err
	e.mu.Unlock()
	return e
}

// Attempts returns the number of Write calls seen.
func (e *Endpoint) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.WriteCalls)
}

func (e *Endpoint) Write(p []byte) (int, error) {
	e.mu.Lock()
	e.WriteCalls = append(e.WriteCalls, append([]byte(nil), p...))
	if e.failWith != nil {
		err := e.failWith
		e.mu.Unlock()
		return 0, err
	}
	if e.blocked || (e.blockAfter > 0 && e.Accepted >= e.blockAfter) {
		e.mu.Unlock()
		return 0, syscall.EAGAIN
	}
	if e.maxWrite > 0 && len(p) > e.maxWrite {
		p = p[:e.maxWrite]
	}
	fn := e.WriteFunc
	e.mu.Unlock()

	var n int
	var err error
	if fn != nil {
		n, err = fn(p)
	} else {
		n, err = e.Endpoint.Write(p)
	}
	if err == nil {
		e.mu.Lock()
		e.Accepted++
		e.mu.Unlock()
	}
	return n, err
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	e.CloseCalls++
	e.mu.Unlock()
	return e.Endpoint.Close()
}
