// control_test.go: MetricsRegistry and DebugProbes coverage.
package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry_Basic(t *testing.T) {
	reg := NewMetricsRegistry()
	reg.Set("foo.count", int64(42))
	reg.Set("bar.status", "ok")

	metrics := reg.GetSnapshot()
	assert.Equal(t, int64(42), metrics["foo.count"])
	assert.Equal(t, "ok", metrics["bar.status"])

	metrics["foo.count"] = 0
	v, ok := reg.Get("foo.count")
	require.True(t, ok)
	assert.Equal(t, int64(42), v, "snapshot aliases the registry")
}

func TestMetricsRegistry_SetMany(t *testing.T) {
	reg := NewMetricsRegistry()
	before := reg.Updated()
	time.Sleep(time.Millisecond)

	reg.SetMany("writer.a", map[string]any{"msgs_sent": uint64(3), "state": "attached"})
	v, ok := reg.Get("writer.a.msgs_sent")
	require.True(t, ok)
	assert.Equal(t, uint64(3), v)
	v, _ = reg.Get("writer.a.state")
	assert.Equal(t, "attached", v)
	assert.True(t, reg.Updated().After(before))

	_, ok = reg.Get("writer.a")
	assert.False(t, ok)
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	dp.RegisterProbe("custom", func() any { return "value" })

	state := dp.DumpState()
	assert.Equal(t, "value", state["custom"])
	assert.Contains(t, state, "platform.cpus")
	assert.Contains(t, state, "platform.gomaxprocs")
	assert.Contains(t, state, "platform.goroutines")

	dp.UnregisterProbe("custom")
	assert.NotContains(t, dp.DumpState(), "custom")
}

func TestDebugProbes_ProbeMayUnregister(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("once", func() any {
		dp.UnregisterProbe("once")
		return 1
	})
	assert.Equal(t, 1, dp.DumpState()["once"])
	assert.Empty(t, dp.DumpState())
}
