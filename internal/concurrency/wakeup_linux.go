//go:build linux
// +build linux

// internal/concurrency/wakeup_linux.go
// Author: momentics <momentics@gmail.com>
//
// eventfd-based cross-goroutine wake-up for epoll driven loops.

package concurrency

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// WakeUp is a readiness signal that any goroutine may strobe and the loop
// goroutine drains. Strobes issued before a drain coalesce into one event.
type WakeUp struct {
	fd      int
	pending atomic.Uint32
	closed  atomic.Bool
}

// NewWakeUp creates a non-blocking eventfd.
func NewWakeUp() (*WakeUp, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &WakeUp{fd: fd}, nil
}

// Fd returns the handle to register for read interest.
func (w *WakeUp) Fd() int { return w.fd }

// Strobe makes Fd readable. It never blocks.
func (w *WakeUp) Strobe() error {
	if w.closed.Load() || !w.pending.CompareAndSwap(0, 1) {
		return nil
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(w.fd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		w.pending.Store(0)
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Drain clears the signal. Loop goroutine only. Work published before a
// strobe that Drain swallowed is visible to the caller once Drain returns.
func (w *WakeUp) Drain() {
	var buf [8]byte
	_, _ = unix.Read(w.fd, buf[:])
	w.pending.Store(0)
}

// Pending reports whether a strobe has not been drained yet.
func (w *WakeUp) Pending() bool {
	return w.pending.Load() == 1
}

// Close releases the eventfd. Strobes after Close are ignored.
func (w *WakeUp) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	return unix.Close(w.fd)
}
