package prom

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/minicass/internal/metrics"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRecorder(reg)
	require.NotNil(t, m)

	m.ProbeAttempt(false)
	m.ProbeAttempt(false)
	m.ProbeAttempt(true)
	m.NodeStarted("embedded", true)
	m.NodeStarted("process", false)
	m.NodesAlive(3)
	m.StartupCompleted(metrics.OutcomeReady, 1500*time.Millisecond)

	r := m.(*recorder)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.probeAttempts.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.probeAttempts.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nodeLaunches.WithLabelValues("embedded", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nodeLaunches.WithLabelValues("process", "false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.nodesAlive))

	count, err := testutil.GatherAndCount(reg, "minicass_startup_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecorderDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}

func TestNop(t *testing.T) {
	m := metrics.Nop()
	assert.NotPanics(t, func() {
		m.ProbeAttempt(true)
		m.NodeStarted("process", true)
		m.NodesAlive(1)
		m.StartupCompleted(metrics.OutcomeFailed, time.Second)
	})
}
