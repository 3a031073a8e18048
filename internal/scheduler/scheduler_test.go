package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmetallica/netcatalog/internal/store"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, nil)
}

func TestReadTrigger_DefaultsWhenUnset(t *testing.T) {
	s := newTestScheduler(t)

	enabled, interval := s.readTrigger("scan_enabled", "scan_interval", defaultScanInterval)
	assert.True(t, enabled, "an unset enabled key must default to enabled")
	assert.Equal(t, defaultScanInterval, interval)
}

func TestReadTrigger_RespectsStoredValues(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.store.WriteSettings(map[string]string{
		"scan_enabled":  "false",
		"scan_interval": "15",
	}))

	enabled, interval := s.readTrigger("scan_enabled", "scan_interval", defaultScanInterval)
	assert.False(t, enabled)
	assert.Equal(t, 15*time.Minute, interval)
}

func TestReadTrigger_AcceptsMinimumDiscoveryInterval(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.store.WriteSettings(map[string]string{"deep_discovery_interval": "5"}))

	_, interval := s.readTrigger("deep_discovery_enabled", "deep_discovery_interval", defaultDiscoveryInterval)
	assert.Equal(t, 5*time.Minute, interval)
}

func TestReload_DoesNotPanicBeforeStart(t *testing.T) {
	s := newTestScheduler(t)
	assert.NotPanics(t, func() { s.Reload() })
}

func TestStop_WithoutStartIsSafe(t *testing.T) {
	s := newTestScheduler(t)
	assert.NotPanics(t, func() { s.Stop() })
}
