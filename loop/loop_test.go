//go:build linux
// +build linux

package loop

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-writer/api"
	"github.com/momentics/hioload-writer/transport"
	"github.com/momentics/hioload-writer/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newLoop(t *testing.T) *Loop {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	l, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLoop_PostRunsOnLoop(t *testing.T) {
	l := newLoop(t)
	var ran atomic.Int32
	require.True(t, l.Post(func() { ran.Add(1) }))
	require.True(t, l.Post(func() { panic("task") }))
	require.True(t, l.Post(func() { ran.Add(1) }))

	ok, err := l.RunOnce(time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 2, ran.Load())
}

func TestLoop_DrivesSources(t *testing.T) {
	l := newLoop(t)

	done := make(chan struct{})
	var results atomic.Int32
	h := &writer.Callbacks{
		WriteResult:  func(err error, _ []byte, _ int) { results.Add(1) },
		Disconnected: func(bool, [][]byte) { close(done) },
	}
	s, err := writer.New(writer.DefaultConfig(), h)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, l.Add(s))
	assert.ErrorIs(t, l.Add(s), api.ErrAlreadyExists)
	assert.Equal(t, 1, l.Len())

	r, w, err := transport.Pipe()
	require.NoError(t, err)
	defer r.Close()
	l.Post(func() { require.NoError(t, s.Attach(w)) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		for s.State() != api.StateAttached {
			time.Sleep(time.Millisecond)
		}
		for _, m := range []string{"one ", "two ", "three"} {
			for !s.WriteString(m) {
				time.Sleep(time.Millisecond)
			}
		}
		s.RequestClose()
	}()
	go func() {
		<-done
		cancel()
	}()

	err = l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled, "loop stopped before the source disconnected")
	assert.EqualValues(t, 3, results.Load())

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "one two three", string(data))

	require.NoError(t, l.Remove(s))
	assert.ErrorIs(t, l.Remove(s), api.ErrNotFound)
	assert.Zero(t, l.Len())
}

func TestLoop_RunRejectsReentry(t *testing.T) {
	l := newLoop(t)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	l.Post(func() { close(started) })
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	<-started

	assert.ErrorIs(t, l.Run(context.Background()), ErrRunning)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestLoop_PinnedRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	var allowed unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &allowed))
	cfg.Pin = true
	for cpu := 0; cpu < 1024; cpu++ {
		if allowed.IsSet(cpu) {
			cfg.CPU = cpu
			break
		}
	}
	l, err := New(cfg)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	l.Post(cancel)
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)

	cfg.CPU = 1 << 20
	l2, err := New(cfg)
	require.NoError(t, err)
	defer l2.Close()
	assert.ErrorIs(t, l2.Run(context.Background()), api.ErrInvalidArgument)
}

func TestLoop_PostFullQueue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TaskQueueSize = 2
	l, err := New(cfg)
	require.NoError(t, err)
	defer l.Close()

	assert.True(t, l.Post(func() {}))
	assert.True(t, l.Post(func() {}))
	assert.False(t, l.Post(func() {}))
}

func TestLoop_RetickSourceWithBacklog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickBudget = 1
	l, err := New(cfg)
	require.NoError(t, err)
	defer l.Close()

	scfg := writer.DefaultConfig()
	scfg.PollBatchSize = 4
	scfg.PollTimeout = time.Millisecond
	s, err := writer.New(scfg, nil)
	require.NoError(t, err)
	defer s.Close()

	var fired atomic.Int32
	for i := 0; i < 3; i++ {
		efd, err := unix.Eventfd(1, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
		require.NoError(t, err)
		defer unix.Close(efd)
		require.NoError(t, s.RegisterFdCallback(efd, func(api.Event) {
			var buf [8]byte
			_, _ = unix.Read(efd, buf[:])
			fired.Add(1)
		}))
		require.NoError(t, s.AddFd(efd, api.Interest{Read: true, OneShot: true}))
	}
	require.NoError(t, l.Add(s))

	for i := 0; i < 20 && fired.Load() < 3; i++ {
		_, err := l.RunOnce(50 * time.Millisecond)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, fired.Load(), "events fetched in one batch were stranded")
	assert.False(t, s.Backlog())
}
