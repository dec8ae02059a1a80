// Package metrics defines the instrumentation points of cluster startup
// without tying the orchestration packages to a metrics backend. The
// Prometheus implementation lives in the prom subpackage.
package metrics

import "time"

// Startup outcomes reported to StartupCompleted.
const (
	OutcomeReady   = "ready"
	OutcomeDied    = "died"
	OutcomeTimeout = "timeout"
	OutcomeFailed  = "failed"
)

// Recorder receives cluster lifecycle observations. All methods are safe for
// concurrent use.
type Recorder interface {
	// ProbeAttempt records one readiness probe and whether any address
	// accepted the connection.
	ProbeAttempt(reachable bool)

	// NodeStarted records a node launch for the given mode.
	NodeStarted(mode string, ok bool)

	// NodesAlive reports how many launched nodes are currently running.
	NodesAlive(n int)

	// StartupCompleted records the end of a startup attempt.
	StartupCompleted(outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ProbeAttempt(bool)                      {}
func (nopRecorder) NodeStarted(string, bool)               {}
func (nopRecorder) NodesAlive(int)                         {}
func (nopRecorder) StartupCompleted(string, time.Duration) {}

// Nop returns a Recorder that discards everything.
func Nop() Recorder { return nopRecorder{} }
