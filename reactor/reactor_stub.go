//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"time"

	"github.com/momentics/hioload-writer/api"
)

// Multiplexer is unavailable outside Linux.
type Multiplexer struct{}

// New returns api.ErrNotSupported on unsupported platforms.
func New(batchSize int) (*Multiplexer, error) {
	return nil, api.WrapError(api.ErrCodeNotSupported, "reactor: this platform is not supported", api.ErrNotSupported)
}

func (m *Multiplexer) Fd() int { return -1 }

func (m *Multiplexer) Add(fd int, in api.Interest) error { return api.ErrNotSupported }

func (m *Multiplexer) Modify(fd int, in api.Interest) error { return api.ErrNotSupported }

func (m *Multiplexer) Remove(fd int) error { return nil }

func (m *Multiplexer) RegisterCallback(fd int, cb api.EventCallback) {}

func (m *Multiplexer) UnregisterCallback(fd int) {}

func (m *Multiplexer) Callbacks() int { return 0 }

func (m *Multiplexer) Pending() int { return 0 }

func (m *Multiplexer) Close() error { return nil }

func (m *Multiplexer) WaitOne(timeout time.Duration) (bool, error) {
	return false, api.ErrNotSupported
}
