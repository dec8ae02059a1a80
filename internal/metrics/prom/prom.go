// Package prom implements metrics.Recorder with Prometheus collectors.
package prom

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/minicass/internal/metrics"
)

// Startup can take minutes for real nodes and milliseconds for embedded ones.
var startupBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

type recorder struct {
	probeAttempts   *prometheus.CounterVec
	nodeLaunches    *prometheus.CounterVec
	nodesAlive      prometheus.Gauge
	startupDuration *prometheus.HistogramVec
}

// NewRecorder registers the cluster collectors on reg and returns a
// Recorder feeding them.
func NewRecorder(reg prometheus.Registerer) metrics.Recorder {
	r := &recorder{
		probeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minicass_probe_attempts_total",
			Help: "Readiness probe attempts by outcome",
		}, []string{"reachable"}),

		nodeLaunches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minicass_node_launches_total",
			Help: "Node launches by mode and success",
		}, []string{"mode", "success"}),

		nodesAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "minicass_nodes_alive",
			Help: "Launched nodes that are still running",
		}),

		startupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minicass_startup_duration_seconds",
			Help:    "Time from startup request to outcome",
			Buckets: startupBuckets,
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		r.probeAttempts,
		r.nodeLaunches,
		r.nodesAlive,
		r.startupDuration,
	)
	return r
}

func (r *recorder) ProbeAttempt(reachable bool) {
	r.probeAttempts.WithLabelValues(strconv.FormatBool(reachable)).Inc()
}

func (r *recorder) NodeStarted(mode string, ok bool) {
	r.nodeLaunches.WithLabelValues(mode, strconv.FormatBool(ok)).Inc()
}

func (r *recorder) NodesAlive(n int) {
	r.nodesAlive.Set(float64(n))
}

func (r *recorder) StartupCompleted(outcome string, d time.Duration) {
	r.startupDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

var _ metrics.Recorder = (*recorder)(nil)
