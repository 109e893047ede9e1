//go:build !linux
// +build !linux

package concurrency

import "github.com/momentics/hioload-writer/api"

// WakeUp is unavailable outside Linux.
type WakeUp struct{}

// NewWakeUp returns api.ErrNotSupported.
func NewWakeUp() (*WakeUp, error) { return nil, api.ErrNotSupported }

func (w *WakeUp) Fd() int { return -1 }

func (w *WakeUp) Strobe() error { return api.ErrNotSupported }

func (w *WakeUp) Drain() {}

func (w *WakeUp) Pending() bool { return false }

func (w *WakeUp) Close() error { return nil }
