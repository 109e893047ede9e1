// File: writer/source.go
// Package writer implements an asynchronous, buffered writer source.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Source multiplexes one non-blocking stream endpoint onto its own epoll
// set. Any goroutine may enqueue messages; the goroutine that drives
// ProcessOne (the loop goroutine) performs the I/O and runs every callback.

package writer

import (
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-writer/api"
	"github.com/momentics/hioload-writer/internal/concurrency"
	"github.com/momentics/hioload-writer/reactor"
	"github.com/nats-io/nuid"
	"golang.org/x/time/rate"
)

// Source is an asynchronous, buffered writer source.
//
// Goroutine rules: Write, WriteString, CanAccept, RequestClose, the counters
// and Stats are safe from any goroutine. Everything else, including every
// handler callback, belongs to the loop goroutine.
type Source struct {
	name    string
	cfg     Config
	logger  *log.Logger
	handler api.Handler

	mux    *reactor.Multiplexer
	wakeup *concurrency.WakeUp
	queue  *concurrency.MessageQueue

	// shared with producers
	state     atomic.Int32 // api.StateDetached, StateAttaching or StateAttached
	closing   atomic.Bool
	producers atomic.Int32 // producers between their acceptance check and enqueue
	unusable  atomic.Bool

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	msgsSent      atomic.Uint64

	// loop goroutine only
	ep          api.Endpoint
	readOpen    bool
	writeReady  bool
	armed       api.Interest
	armedValid  bool
	current     []byte
	currentSent int
	readBuf     []byte
	closed      bool

	excLimiter *rate.Limiter
	suppressed atomic.Uint64
}

// New creates a detached Source. A nil handler discards every callback.
func New(cfg Config, h api.Handler) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = nuid.Next()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if h == nil {
		h = &Callbacks{}
	}

	mux, err := reactor.New(cfg.PollBatchSize)
	if err != nil {
		return nil, fmt.Errorf("writer %s: %w", cfg.Name, err)
	}
	wk, err := concurrency.NewWakeUp()
	if err != nil {
		_ = mux.Close()
		return nil, fmt.Errorf("writer %s: %w", cfg.Name, err)
	}

	s := &Source{
		name:       cfg.Name,
		cfg:        cfg,
		logger:     cfg.Logger,
		handler:    h,
		mux:        mux,
		wakeup:     wk,
		queue:      concurrency.NewMessageQueue(cfg.QueueCapacity),
		readBuf:    make([]byte, cfg.ReadBufferSize),
		excLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}
	mux.RegisterCallback(wk.Fd(), s.handleWakeup)
	if err := mux.Add(wk.Fd(), api.Interest{Read: true}); err != nil {
		_ = wk.Close()
		_ = mux.Close()
		return nil, fmt.Errorf("writer %s: register wakeup: %w", cfg.Name, err)
	}
	if cfg.Debug != nil {
		cfg.Debug.RegisterProbe(s.probeName(), func() any { return s.Stats().String() })
	}
	return s, nil
}

// Name returns the identifier of the source.
func (s *Source) Name() string { return s.name }

// PollFd returns the readiness handle for inclusion in an outer polling set.
func (s *Source) PollFd() int { return s.mux.Fd() }

// State returns the lifecycle state. Draining is an attached source whose
// close was requested.
func (s *Source) State() api.SourceState {
	st := api.SourceState(s.state.Load())
	if st == api.StateAttached && s.closing.Load() {
		return api.StateDraining
	}
	return st
}

// Backlog reports whether events fetched by an earlier tick still await
// dispatch. Such events do not make PollFd readable, so a host that ticks a
// bounded number of times per readiness report must tick again while Backlog
// is true. Loop goroutine only.
func (s *Source) Backlog() bool { return s.mux.Pending() > 0 }

// WriteReady reports whether the endpoint was last seen writable. Loop goroutine only.
func (s *Source) WriteReady() bool { return s.writeReady }

// BytesSent returns the number of bytes acknowledged by the endpoint.
func (s *Source) BytesSent() uint64 { return s.bytesSent.Load() }

// BytesReceived returns the number of bytes read from the endpoint.
func (s *Source) BytesReceived() uint64 { return s.bytesReceived.Load() }

// MsgsSent returns the number of fully written messages.
func (s *Source) MsgsSent() uint64 { return s.msgsSent.Load() }

// CanAccept is an advisory snapshot of whether Write would accept a message.
func (s *Source) CanAccept() bool {
	if s.unusable.Load() {
		return false
	}
	st := api.SourceState(s.state.Load())
	if st != api.StateAttaching && st != api.StateAttached {
		return false
	}
	return !s.closing.Load() && s.queue.HasRoom()
}

// Write enqueues msg and returns whether it was accepted. Ownership of msg
// passes to the source on success; the caller must not modify it afterwards.
// Write never blocks and never invokes callbacks.
func (s *Source) Write(msg []byte) bool {
	s.producers.Add(1)
	defer s.producers.Add(-1)
	if !s.CanAccept() || !s.queue.TryEnqueue(msg) {
		return false
	}
	if err := s.wakeup.Strobe(); err != nil {
		s.logger.Printf("[writer] %s: wakeup: %v", s.name, err)
	}
	return true
}

// WriteString enqueues a copy of str.
func (s *Source) WriteString(str string) bool {
	return s.Write([]byte(str))
}

// RequestClose asks the source to release the endpoint once every accepted
// message has been written. It is idempotent, safe from any goroutine and a
// no-op once the source is unusable.
func (s *Source) RequestClose() {
	s.producers.Add(1)
	defer s.producers.Add(-1)
	if s.unusable.Load() {
		return
	}
	s.closing.Store(true)
	if err := s.wakeup.Strobe(); err != nil {
		s.logger.Printf("[writer] %s: wakeup: %v", s.name, err)
	}
}

// ProcessOne performs at most one unit of work: it dispatches one readiness
// event, waiting at most Config.PollTimeout for it. It returns false when
// there was nothing to do or the source is unusable.
func (s *Source) ProcessOne() bool {
	if s.unusable.Load() {
		return false
	}
	ok, err := s.mux.WaitOne(s.cfg.PollTimeout)
	if err != nil {
		s.handleMuxError(err)
	}
	if ok {
		s.publish()
	}
	return ok
}

// Close tears the source down. An attached endpoint is released first with
// a disconnected(false, unwritten) callback.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ep != nil {
		s.disconnect(false)
	} else if api.SourceState(s.state.Load()) == api.StateAttaching {
		s.AbortAttach(api.ErrClosed)
	}
	s.unusable.Store(true)
	// no producer may strobe the wake-up once its descriptor is closed
	s.waitProducers()
	if s.cfg.Debug != nil {
		s.cfg.Debug.UnregisterProbe(s.probeName())
	}
	_ = s.mux.Remove(s.wakeup.Fd())
	s.mux.UnregisterCallback(s.wakeup.Fd())
	werr := s.wakeup.Close()
	merr := s.mux.Close()
	if werr != nil {
		return werr
	}
	return merr
}

func (s *Source) handleMuxError(err error) {
	switch api.CodeOf(err) {
	case api.ErrCodeCallbackPanic:
		// an auxiliary handle callback panicked
		s.exception(err)
		if s.ep != nil {
			s.disconnect(false)
		}
	case api.ErrCodeNoCallback:
		s.exception(err)
	default:
		s.fatal(err)
	}
}

// fatal reports err and leaves the source unusable.
func (s *Source) fatal(err error) {
	s.exception(err)
	if s.ep != nil {
		s.disconnect(false)
	}
	s.unusable.Store(true)
}

// waitProducers spins until no producer sits between its acceptance check
// and its enqueue. Producers hold that window for a few instructions only.
func (s *Source) waitProducers() {
	for s.producers.Load() != 0 {
		runtime.Gosched()
	}
}

func (s *Source) logf(format string, v ...any) {
	s.logger.Printf("[writer] "+s.name+": "+format, v...)
}

func (s *Source) exception(err error) {
	if s.excLimiter.Allow() {
		if n := s.suppressed.Swap(0); n > 0 {
			s.logf("exception: %v (%d earlier suppressed)", err, n)
		} else {
			s.logf("exception: %v", err)
		}
	} else {
		s.suppressed.Add(1)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logf("OnException panicked: %v", r)
		}
	}()
	s.handler.OnException(err)
}

func (s *Source) recoverCallback(where string) {
	if r := recover(); r != nil {
		s.exception(api.PanicError(where, r).WithContext("source", s.name))
	}
}

func (s *Source) invokeWriteResult(err error, msg []byte, written int) {
	defer s.recoverCallback("OnWriteResult")
	s.handler.OnWriteResult(err, msg, written)
}

func (s *Source) invokeReceived(data []byte) {
	defer s.recoverCallback("OnReceivedData")
	s.handler.OnReceivedData(data)
}

func (s *Source) invokeDisconnected(fromPeer bool, unwritten [][]byte) {
	defer s.recoverCallback("OnDisconnected")
	s.handler.OnDisconnected(fromPeer, unwritten)
}
