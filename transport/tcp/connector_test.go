//go:build linux
// +build linux

package tcp

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-writer/api"
	"github.com/momentics/hioload-writer/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type events struct {
	mu          sync.Mutex
	sent        []string
	disconnects int
	fromPeer    bool
	unwritten   [][]byte
}

func (e *events) handler() *writer.Callbacks {
	return &writer.Callbacks{
		WriteResult: func(err error, msg []byte, _ int) {
			if err == nil {
				e.mu.Lock()
				e.sent = append(e.sent, string(msg))
				e.mu.Unlock()
			}
		},
		Disconnected: func(fromPeer bool, unwritten [][]byte) {
			e.mu.Lock()
			e.disconnects++
			e.fromPeer = fromPeer
			e.unwritten = unwritten
			e.mu.Unlock()
		},
	}
}

func (e *events) count() (sent, disconnects int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent), e.disconnects
}

func newConnector(t *testing.T, ev *events) *Connector {
	t.Helper()
	cfg := writer.DefaultConfig()
	cfg.PollTimeout = 10 * time.Millisecond
	c, err := NewConnector(cfg, ev.handler())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func pump(t *testing.T, c *Connector, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached; stats: %s", c.Stats())
		}
		c.ProcessOne()
	}
}

func TestConnector_SendsQueuedWhileConnecting(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		defer conn.Close()
		buf := make([]byte, 11)
		_, _ = io.ReadFull(conn, buf)
		accepted <- buf
	}()

	ev := &events{}
	c := newConnector(t, ev)
	require.NoError(t, c.Connect(ln.Addr().String()))
	assert.Equal(t, ln.Addr().String(), c.Addr())

	st := c.State()
	assert.True(t, st == api.StateAttaching || st == api.StateAttached, "state %s", st)
	require.True(t, c.WriteString("hello "))
	require.True(t, c.WriteString("world"))

	pump(t, c, func() bool { n, _ := ev.count(); return n == 2 })
	assert.False(t, c.Connecting())
	assert.Equal(t, api.StateAttached, c.State())
	assert.Equal(t, "hello world", string(<-accepted))
}

func TestConnector_RefusedSurfacesUnwritten(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ev := &events{}
	c := newConnector(t, ev)
	if err := c.Connect(addr); err == nil {
		c.WriteString("never")
		pump(t, c, func() bool { _, d := ev.count(); return d == 1 })
	}

	_, d := ev.count()
	assert.Equal(t, 1, d)
	assert.False(t, ev.fromPeer)
	assert.False(t, c.Connecting())
	assert.Equal(t, api.StateDetached, c.State())
	assert.Zero(t, c.Stats().Remaining)
}

func TestConnector_RejectsSecondConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	c := newConnector(t, &events{})
	require.NoError(t, c.Connect(ln.Addr().String()))
	assert.ErrorIs(t, c.Connect(ln.Addr().String()), api.ErrAlreadyAttached)
}

func TestConnector_BadAddress(t *testing.T) {
	c := newConnector(t, &events{})
	assert.Error(t, c.Connect("not an address"))
	assert.Equal(t, api.StateDetached, c.State())
}

func TestConnector_ClosePendingConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ev := &events{}
	c := newConnector(t, ev)
	require.NoError(t, c.Connect(ln.Addr().String()))
	require.True(t, c.WriteString("queued"))
	require.NoError(t, c.Close())

	_, d := ev.count()
	assert.Equal(t, 1, d)
	assert.Len(t, ev.unwritten, 1)
}
