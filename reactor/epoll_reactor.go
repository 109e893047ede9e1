//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-writer/api"
	"golang.org/x/sys/unix"
)

var _ api.Multiplexer = (*Multiplexer)(nil)

// Multiplexer is an epoll readiness set with a per-handle callback registry.
// Add/Modify/Remove and the callback registry are safe from any goroutine;
// WaitOne must be called from a single goroutine at a time.
type Multiplexer struct {
	epfd      int
	events    []unix.EpollEvent
	pending   *queue.Queue // events fetched from the kernel but not dispatched yet
	pendingMu sync.Mutex
	callbacks *registry
	closeOnce sync.Once
}

// New creates a multiplexer that requests up to batchSize events per wait.
func New(batchSize int) (*Multiplexer, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.WrapError(api.ErrCodeRegistration, "epoll create", err)
	}
	return &Multiplexer{
		epfd:      epfd,
		events:    make([]unix.EpollEvent, batchSize),
		pending:   queue.New(),
		callbacks: newRegistry(),
	}, nil
}

// Fd returns the epoll descriptor; it is readable whenever an event is pending
// in the kernel.
func (m *Multiplexer) Fd() int { return m.epfd }

func epollFlags(in api.Interest) uint32 {
	var flags uint32
	if in.Read {
		flags |= unix.EPOLLIN
	}
	if in.Write {
		flags |= unix.EPOLLOUT
	}
	if in.OneShot {
		flags |= unix.EPOLLONESHOT
	}
	return flags
}

func (m *Multiplexer) ctl(op, fd int, in api.Interest) error {
	ev := unix.EpollEvent{Events: epollFlags(in), Fd: int32(fd)}
	return unix.EpollCtl(m.epfd, op, fd, &ev)
}

// Add registers fd. Registering a handle twice fails with api.ErrAlreadyExists.
func (m *Multiplexer) Add(fd int, in api.Interest) error {
	if err := m.ctl(unix.EPOLL_CTL_ADD, fd, in); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return api.WrapError(api.ErrCodeAlreadyExists, "epoll ctl add", err).WithContext("fd", fd)
		}
		return api.WrapError(api.ErrCodeRegistration, "epoll ctl add", err).WithContext("fd", fd)
	}
	return nil
}

// Modify replaces the interest of fd. Unknown handles fail with api.ErrNotFound.
func (m *Multiplexer) Modify(fd int, in api.Interest) error {
	if err := m.ctl(unix.EPOLL_CTL_MOD, fd, in); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return api.WrapError(api.ErrCodeNotFound, "epoll ctl mod", err).WithContext("fd", fd)
		}
		return api.WrapError(api.ErrCodeRegistration, "epoll ctl mod", err).WithContext("fd", fd)
	}
	return nil
}

// Remove drops fd from the set and forgets events already fetched for it.
func (m *Multiplexer) Remove(fd int) error {
	err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	m.pendingMu.Lock()
	purge(m.pending, fd)
	m.pendingMu.Unlock()
	if err != nil && !errors.Is(err, unix.ENOENT) && !errors.Is(err, unix.EBADF) {
		return api.WrapError(api.ErrCodeRegistration, "epoll ctl del", err).WithContext("fd", fd)
	}
	return nil
}

// RegisterCallback associates cb with fd, replacing any previous callback.
func (m *Multiplexer) RegisterCallback(fd int, cb api.EventCallback) {
	m.callbacks.set(fd, cb)
}

// UnregisterCallback forgets the callback of fd.
func (m *Multiplexer) UnregisterCallback(fd int) {
	m.callbacks.del(fd)
}

// Pending returns the number of events fetched from the kernel but not yet
// dispatched. They do not make Fd readable.
func (m *Multiplexer) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pending.Length()
}

// Callbacks returns the number of registered callbacks.
func (m *Multiplexer) Callbacks() int { return m.callbacks.len() }

func toEvent(raw unix.EpollEvent) api.Event {
	return api.Event{
		Fd:       int(raw.Fd),
		Readable: raw.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0,
		Writable: raw.Events&unix.EPOLLOUT != 0,
		Error:    raw.Events&unix.EPOLLERR != 0,
		Hangup:   raw.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
	}
}

func (m *Multiplexer) next() (api.Event, bool) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if m.pending.Length() == 0 {
		return api.Event{}, false
	}
	return m.pending.Remove().(api.Event), true
}

// WaitOne dispatches one event. Events left over from a previous kernel batch
// are served first; otherwise it waits up to timeout for the kernel (0 polls,
// negative blocks). It reports whether a callback was run. An event for a
// handle without callback yields api.ErrNoCallback; a panicking callback is
// recovered and returned as an *api.Error with ErrCodeCallbackPanic.
func (m *Multiplexer) WaitOne(timeout time.Duration) (bool, error) {
	ev, ok := m.next()
	if !ok {
		n, err := m.wait(timeout)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		m.pendingMu.Lock()
		for i := 1; i < n; i++ {
			m.pending.Add(toEvent(m.events[i]))
		}
		m.pendingMu.Unlock()
		ev = toEvent(m.events[0])
	}

	cb, found := m.callbacks.get(ev.Fd)
	if !found {
		return false, api.WrapError(api.ErrCodeNoCallback, "dispatch", api.ErrNoCallback).WithContext("fd", ev.Fd)
	}
	return true, dispatch(cb, ev)
}

func (m *Multiplexer) wait(timeout time.Duration) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}
	n, err := unix.EpollWait(m.epfd, m.events, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil // interrupted by signal, normal
		}
		return 0, api.WrapError(api.ErrCodeRegistration, "epoll wait", err)
	}
	return n, nil
}

// Close releases the epoll descriptor.
func (m *Multiplexer) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if cerr := unix.Close(m.epfd); cerr != nil {
			err = fmt.Errorf("epoll close: %w", cerr)
		}
	})
	return err
}
