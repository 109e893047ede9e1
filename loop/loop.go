// File: loop/loop.go
// Package loop is a host event loop for writer sources.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Loop polls the readiness handles of many sources in one outer epoll set
// and ticks a source each time its handle reports readiness. Code that must
// run on the loop goroutine (Attach, Connect, Detach) is submitted via Post.

package loop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-writer/affinity"
	"github.com/momentics/hioload-writer/api"
	"github.com/momentics/hioload-writer/internal/concurrency"
	"github.com/momentics/hioload-writer/reactor"
)

// ErrRunning is returned by Run when the loop is already running.
var ErrRunning = errors.New("loop is already running")

// Tickable is what the loop drives; *writer.Source implements it.
type Tickable interface {
	PollFd() int
	ProcessOne() bool
}

// backlogger is implemented by sources that can hold dispatchable events
// which no longer show up as readiness on PollFd.
type backlogger interface {
	Backlog() bool
}

// Config holds loop parameters.
type Config struct {
	TaskQueueSize int           // Capacity of the Post queue
	PollInterval  time.Duration // Upper bound of one outer wait
	TickBudget    int           // Ticks granted to a source per readiness report
	Pin           bool          // Lock Run to one OS thread restricted to CPU
	CPU           int           // Logical CPU for Pin
	Logger        *log.Logger
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		TaskQueueSize: 1024,
		PollInterval:  100 * time.Millisecond,
		TickBudget:    16,
	}
}

// Loop is a single-goroutine host for writer sources.
type Loop struct {
	cfg     Config
	logger  *log.Logger
	mux     *reactor.Multiplexer
	wakeup  *concurrency.WakeUp
	tasks   *concurrency.LockFreeQueue[func()]
	running atomic.Bool

	mu      sync.Mutex
	sources map[int]Tickable
}

// New creates a loop.
func New(cfg Config) (*Loop, error) {
	def := DefaultConfig()
	if cfg.TaskQueueSize <= 0 {
		cfg.TaskQueueSize = def.TaskQueueSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.TickBudget <= 0 {
		cfg.TickBudget = def.TickBudget
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	mux, err := reactor.New(16)
	if err != nil {
		return nil, fmt.Errorf("loop: %w", err)
	}
	wk, err := concurrency.NewWakeUp()
	if err != nil {
		_ = mux.Close()
		return nil, fmt.Errorf("loop: %w", err)
	}
	l := &Loop{
		cfg:     cfg,
		logger:  cfg.Logger,
		mux:     mux,
		wakeup:  wk,
		tasks:   concurrency.NewLockFreeQueue[func()](cfg.TaskQueueSize),
		sources: make(map[int]Tickable),
	}
	mux.RegisterCallback(wk.Fd(), l.runTasks)
	if err := mux.Add(wk.Fd(), api.Interest{Read: true}); err != nil {
		_ = wk.Close()
		_ = mux.Close()
		return nil, fmt.Errorf("loop: register wakeup: %w", err)
	}
	return l, nil
}

// Add includes src's readiness handle in the loop.
func (l *Loop) Add(src Tickable) error {
	fd := src.PollFd()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sources[fd]; ok {
		return api.WrapError(api.ErrCodeAlreadyExists, "loop add", api.ErrAlreadyExists).WithContext("fd", fd)
	}
	l.mux.RegisterCallback(fd, func(api.Event) { l.tick(fd, src) })
	if err := l.mux.Add(fd, api.Interest{Read: true}); err != nil {
		l.mux.UnregisterCallback(fd)
		return err
	}
	l.sources[fd] = src
	return nil
}

// tick grants src its budget. A source left with a backlog is ticked again
// from the task queue, after other ready sources had their turn.
func (l *Loop) tick(fd int, src Tickable) {
	for i := 0; i < l.cfg.TickBudget; i++ {
		if !src.ProcessOne() {
			break
		}
	}
	b, ok := src.(backlogger)
	if !ok || !b.Backlog() {
		return
	}
	if !l.Post(func() {
		l.mu.Lock()
		cur, ok := l.sources[fd]
		l.mu.Unlock()
		if ok && cur == src {
			l.tick(fd, src)
		}
	}) {
		l.logger.Printf("[loop] task queue full, backlog of fd %d waits for readiness", fd)
	}
}

// Remove drops src from the loop.
func (l *Loop) Remove(src Tickable) error {
	fd := src.PollFd()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sources[fd]; !ok {
		return api.ErrNotFound
	}
	delete(l.sources, fd)
	l.mux.UnregisterCallback(fd)
	return l.mux.Remove(fd)
}

// Len returns the number of sources in the loop.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sources)
}

// Post schedules fn on the loop goroutine. It returns false if the task
// queue is full.
func (l *Loop) Post(fn func()) bool {
	if !l.tasks.Enqueue(fn) {
		return false
	}
	if err := l.wakeup.Strobe(); err != nil {
		l.logger.Printf("[loop] wakeup: %v", err)
	}
	return true
}

func (l *Loop) runTasks(api.Event) {
	l.wakeup.Drain()
	for {
		fn, ok := l.tasks.Dequeue()
		if !ok {
			return
		}
		l.runTask(fn)
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("[loop] task panicked: %v", r)
		}
	}()
	fn()
}

// RunOnce waits up to timeout and dispatches one readiness report.
func (l *Loop) RunOnce(timeout time.Duration) (bool, error) {
	ok, err := l.mux.WaitOne(timeout)
	if err != nil {
		switch api.CodeOf(err) {
		case api.ErrCodeCallbackPanic, api.ErrCodeNoCallback:
			// keep the loop alive; the offending source is at fault
			l.logger.Printf("[loop] dispatch: %v", err)
			return ok, nil
		}
		return ok, err
	}
	return ok, nil
}

// Run drives the loop until ctx is done or the outer set fails.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)
	if l.cfg.Pin {
		unpin, err := affinity.Pin(l.cfg.CPU)
		if err != nil {
			return fmt.Errorf("loop: %w", err)
		}
		defer unpin()
	}
	stop := context.AfterFunc(ctx, func() { _ = l.wakeup.Strobe() })
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := l.RunOnce(l.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// Close releases the loop's own handles. Sources are not closed.
func (l *Loop) Close() error {
	_ = l.mux.Remove(l.wakeup.Fd())
	werr := l.wakeup.Close()
	merr := l.mux.Close()
	return errors.Join(werr, merr)
}
