// File: writer/attach.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint-adapter surface used by connectors. Loop goroutine only.

package writer

import (
	"github.com/momentics/hioload-writer/api"
)

// BeginAttach marks the source as being attached, so producers may enqueue
// while a connector is still establishing the endpoint.
func (s *Source) BeginAttach() error {
	if s.unusable.Load() {
		return api.ErrUnusable
	}
	if s.ep != nil || !s.state.CompareAndSwap(int32(api.StateDetached), int32(api.StateAttaching)) {
		return api.WrapError(api.ErrCodeAlreadyAttached, "begin attach", api.ErrAlreadyAttached).WithContext("source", s.name)
	}
	s.closing.Store(false)
	return nil
}

// AbortAttach ends an attach that never produced an endpoint. Messages
// queued meanwhile are surfaced through OnDisconnected(false, unwritten).
func (s *Source) AbortAttach(cause error) {
	if !s.state.CompareAndSwap(int32(api.StateAttaching), int32(api.StateDetached)) {
		return
	}
	s.waitProducers()
	unwritten := s.queue.DrainTo(nil)
	if cause != nil {
		s.logf("attach aborted: %v", cause)
	}
	s.publish()
	s.invokeDisconnected(false, unwritten)
}

// Attach transfers ownership of a non-blocking endpoint to the source and
// registers it for read (when readable) and one-shot write readiness.
func (s *Source) Attach(ep api.Endpoint) error {
	if s.unusable.Load() {
		return api.ErrUnusable
	}
	if ep == nil || !ep.Writable() {
		return api.WrapError(api.ErrCodeInvalidArgument, "attach: endpoint must be writable", api.ErrInvalidArgument)
	}
	if s.ep != nil {
		return api.WrapError(api.ErrCodeAlreadyAttached, "attach", api.ErrAlreadyAttached).WithContext("source", s.name)
	}
	prev := api.SourceState(s.state.Load())
	if prev != api.StateDetached && prev != api.StateAttaching {
		return api.WrapError(api.ErrCodeAlreadyAttached, "attach", api.ErrAlreadyAttached).WithContext("state", prev.String())
	}
	fd := ep.Fd()
	if err := checkNonBlocking(fd); err != nil {
		return err
	}

	in := api.Interest{Read: ep.Readable(), Write: true, OneShot: true}
	s.mux.RegisterCallback(fd, s.handleEndpointEvent)
	if err := s.mux.Add(fd, in); err != nil {
		s.mux.UnregisterCallback(fd)
		return err
	}

	s.ep = ep
	s.readOpen = ep.Readable()
	s.writeReady = false
	s.armed, s.armedValid = in, true
	s.current, s.currentSent = nil, 0
	if prev == api.StateDetached {
		s.closing.Store(false)
	}
	s.state.Store(int32(api.StateAttached))
	return nil
}

// Endpoint returns the attached endpoint, or nil.
func (s *Source) Endpoint() api.Endpoint { return s.ep }

// Detach forcibly releases the endpoint; OnDisconnected(false, unwritten)
// follows. An attach in progress is aborted instead.
func (s *Source) Detach() error {
	if s.ep == nil {
		if api.SourceState(s.state.Load()) == api.StateAttaching {
			s.AbortAttach(nil)
			return nil
		}
		return api.ErrNotAttached
	}
	s.disconnect(false)
	return nil
}

// AddFd registers an auxiliary handle in the source's readiness set. The
// caller owns the handle and re-arms one-shot registrations itself. The
// source's own handles are refused with api.ErrInvalidArgument.
func (s *Source) AddFd(fd int, in api.Interest) error {
	if err := s.checkAuxFd(fd); err != nil {
		return err
	}
	return s.mux.Add(fd, in)
}

// ModifyFd changes the interest of an auxiliary handle.
func (s *Source) ModifyFd(fd int, in api.Interest) error {
	if err := s.checkAuxFd(fd); err != nil {
		return err
	}
	return s.mux.Modify(fd, in)
}

// RemoveFd drops an auxiliary handle; absent handles are ignored.
func (s *Source) RemoveFd(fd int) error {
	if err := s.checkAuxFd(fd); err != nil {
		return err
	}
	return s.mux.Remove(fd)
}

// RegisterFdCallback associates cb with an auxiliary handle. A panic in cb is
// reported to OnException and forces a detach of the endpoint.
func (s *Source) RegisterFdCallback(fd int, cb api.EventCallback) error {
	if err := s.checkAuxFd(fd); err != nil {
		return err
	}
	s.mux.RegisterCallback(fd, cb)
	return nil
}

// UnregisterFdCallback forgets the callback of an auxiliary handle. The
// source's own handles are left alone.
func (s *Source) UnregisterFdCallback(fd int) {
	if s.checkAuxFd(fd) == nil {
		s.mux.UnregisterCallback(fd)
	}
}

// checkAuxFd rejects the wake-up and the attached endpoint: the engine
// tracks their registration itself and would stall if it were changed
// behind its back.
func (s *Source) checkAuxFd(fd int) error {
	if fd == s.wakeup.Fd() || (s.ep != nil && fd == s.ep.Fd()) {
		return api.WrapError(api.ErrCodeInvalidArgument, "handle owned by the source", api.ErrInvalidArgument).WithContext("fd", fd)
	}
	return nil
}
