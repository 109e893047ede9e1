//go:build linux
// +build linux

package concurrency

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func readable(t *testing.T, fd int) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	require.NoError(t, err)
	return n == 1 && fds[0].Revents&unix.POLLIN != 0
}

func TestWakeUp_StrobeAndDrain(t *testing.T) {
	w, err := NewWakeUp()
	require.NoError(t, err)
	defer w.Close()

	assert.False(t, readable(t, w.Fd()))
	require.NoError(t, w.Strobe())
	assert.True(t, w.Pending())
	assert.True(t, readable(t, w.Fd()))

	w.Drain()
	assert.False(t, w.Pending())
	assert.False(t, readable(t, w.Fd()))
}

func TestWakeUp_StrobesCoalesce(t *testing.T) {
	w, err := NewWakeUp()
	require.NoError(t, err)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = w.Strobe()
			}
		}()
	}
	wg.Wait()

	var buf [8]byte
	n, err := unix.Read(w.Fd(), buf[:])
	require.NoError(t, err)
	require.Equal(t, 8, n)
	assert.EqualValues(t, 1, binary.NativeEndian.Uint64(buf[:]), "strobes were not coalesced into one write")
}

func TestWakeUp_CloseIsIdempotent(t *testing.T) {
	w, err := NewWakeUp()
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Strobe(), "strobe after close is ignored")
}
