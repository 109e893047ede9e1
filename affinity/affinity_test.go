//go:build linux
// +build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/momentics/hioload-writer/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPin_RestrictsAndRestores(t *testing.T) {
	var before unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &before))
	cpu := -1
	for i := 0; i < 1024; i++ {
		if before.IsSet(i) {
			cpu = i
			break
		}
	}
	require.GreaterOrEqual(t, cpu, 0)

	unpin, err := Pin(cpu)
	require.NoError(t, err)
	var during unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &during))
	assert.Equal(t, 1, during.Count())
	assert.True(t, during.IsSet(cpu))
	unpin()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	var after unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &after))
	assert.GreaterOrEqual(t, after.Count(), 1)
}

func TestPin_NegativeOnlyLocks(t *testing.T) {
	unpin, err := Pin(-1)
	require.NoError(t, err)
	unpin()
}

func TestPin_OutOfRange(t *testing.T) {
	_, err := Pin(4096)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
