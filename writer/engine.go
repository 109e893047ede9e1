// File: writer/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection engine: readiness handling, the drain step and the forced
// detach procedure. Everything here runs on the loop goroutine.

package writer

import (
	"fmt"

	"github.com/momentics/hioload-writer/api"
)

// handleWakeup runs when a producer strobed after enqueueing or closing.
func (s *Source) handleWakeup(api.Event) {
	s.wakeup.Drain()
	if s.ep == nil {
		return
	}
	if s.writeReady {
		s.flush()
	}
	if s.ep != nil {
		s.rearm()
	}
}

// handleEndpointEvent services coalesced readiness in the order read, write,
// error/hang-up so received data is delivered before the disconnection.
func (s *Source) handleEndpointEvent(ev api.Event) {
	if s.ep == nil || ev.Fd != s.ep.Fd() {
		return
	}
	s.armedValid = false // one-shot registration disarmed itself

	if ev.Readable && s.readOpen {
		s.handleReadReady()
		if s.ep == nil {
			return
		}
	}
	if ev.Writable {
		s.writeReady = true
		s.flush()
		if s.ep == nil {
			return
		}
	}
	if ev.Error || ev.Hangup {
		s.disconnect(true)
		return
	}
	s.rearm()
}

func (s *Source) handleReadReady() {
	n, err := s.ep.Read(s.readBuf)
	if n > 0 {
		s.bytesReceived.Add(uint64(n))
		s.invokeReceived(s.readBuf[:n])
		if s.ep == nil {
			return
		}
	}
	switch {
	case err == nil:
		if n <= 0 {
			s.disconnect(true) // end of stream
		}
	case isTransient(err):
	case isPeerLoss(err):
		s.disconnect(true)
	default:
		s.exception(fmt.Errorf("writer %s: read: %w", s.name, err))
		s.disconnect(false)
	}
}

// flush is the drain step: write queued messages while the endpoint stays
// writable, one non-blocking write per attempt.
func (s *Source) flush() {
	for s.ep != nil && s.writeReady {
		if s.current == nil {
			msg, ok := s.queue.TryDequeue()
			if !ok && s.closing.Load() {
				// a producer that passed its check before the close may still be enqueueing
				s.waitProducers()
				msg, ok = s.queue.TryDequeue()
				if !ok {
					s.disconnect(false)
					return
				}
			}
			if !ok {
				return
			}
			s.current, s.currentSent = msg, 0
		}

		if s.currentSent < len(s.current) {
			n, err := s.ep.Write(s.current[s.currentSent:])
			if n > 0 {
				s.currentSent += n
			}
			if err != nil {
				if isTransient(err) {
					s.writeReady = false
					return
				}
				s.failCurrent(err)
				return
			}
			if s.currentSent < len(s.current) {
				// partial write: the kernel buffer is full
				s.writeReady = false
				return
			}
		}
		s.completeCurrent()
	}
}

func (s *Source) completeCurrent() {
	msg := s.current
	s.current, s.currentSent = nil, 0
	s.queue.Release()
	s.bytesSent.Add(uint64(len(msg)))
	s.msgsSent.Add(1)
	s.invokeWriteResult(nil, msg, len(msg))
}

// failCurrent reports a permanent write error on the current message and
// ends the attachment.
func (s *Source) failCurrent(err error) {
	msg, sent := s.current, s.currentSent
	s.current, s.currentSent = nil, 0
	s.queue.Release()
	s.bytesSent.Add(uint64(sent))
	s.invokeWriteResult(err, msg, sent)
	s.disconnect(isPeerLoss(err))
}

// rearm restores the one-shot registration: read while the endpoint is
// readable, write only while a write is pending on readiness.
func (s *Source) rearm() {
	want := api.Interest{Read: s.readOpen, Write: !s.writeReady, OneShot: true}
	if s.armedValid && s.armed == want {
		return
	}
	if err := s.mux.Modify(s.ep.Fd(), want); err != nil {
		s.fatal(fmt.Errorf("writer %s: rearm: %w", s.name, err))
		return
	}
	s.armed, s.armedValid = want, true
}

// disconnect is the forced detach procedure. The disconnection callback is
// the last one of the attachment.
func (s *Source) disconnect(fromPeer bool) {
	ep := s.ep
	if ep == nil {
		return
	}
	s.state.Store(int32(api.StateDetached))
	s.waitProducers()

	fd := ep.Fd()
	if err := s.mux.Remove(fd); err != nil {
		s.logf("remove fd %d: %v", fd, err)
	}
	s.mux.UnregisterCallback(fd)

	var unwritten [][]byte
	if s.current != nil {
		unwritten = append(unwritten, s.current[s.currentSent:])
		s.current, s.currentSent = nil, 0
		s.queue.Release()
	}
	unwritten = s.queue.DrainTo(unwritten)

	s.ep = nil
	s.writeReady = false
	s.readOpen = false
	s.armedValid = false
	if err := ep.Close(); err != nil {
		s.logf("close fd %d: %v", fd, err)
	}
	s.publish()
	s.invokeDisconnected(fromPeer, unwritten)
}
