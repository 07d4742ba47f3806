package server

import (
	"expvar"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemCollectorPublishes(t *testing.T) {
	sc := NewSystemCollector(t.TempDir(), 20*time.Millisecond, "test_collector_", discardLogger())
	sc.Start()
	time.Sleep(150 * time.Millisecond)
	sc.Stop()

	for _, name := range []string{
		"test_collector_system_cpu_usage_percent",
		"test_collector_system_mem_usage_percent",
		"test_collector_system_disk_usage_percent",
	} {
		require.NotNil(t, expvar.Get(name), name)
	}

	memVar, ok := expvar.Get("test_collector_system_mem_usage_percent").(*expvar.Float)
	require.True(t, ok)
	assert.Greater(t, memVar.Value(), 0.0, "a live process always has nonzero memory usage")
}

func TestSystemCollectorStopTerminates(t *testing.T) {
	sc := NewSystemCollector(t.TempDir(), 10*time.Millisecond, "test_collector2_", discardLogger())
	sc.Start()

	done := make(chan struct{})
	go func() {
		sc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestPublishFloatReusesRegisteredName(t *testing.T) {
	a := publishFloat("test_reuse_gauge")
	a.Set(12.5)

	b := publishFloat("test_reuse_gauge")
	assert.Same(t, a, b)
	assert.Equal(t, 0.0, b.Value(), "republishing resets the gauge")
}
