// Package supervisor runs a cluster's startup in a background goroutine,
// publishes a ready flag once it succeeds and keeps the cluster up until
// asked to stop.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Cluster is what a Supervisor drives.
type Cluster interface {
	Startup(ctx context.Context) error
	Shutdown(ctx context.Context)
}

// DefaultIdleInterval is how often the idle loop wakes up on its own.
const DefaultIdleInterval = time.Second

// Supervisor owns one Cluster for its whole life. A stop request that
// arrives during startup is honoured once startup has finished.
type Supervisor struct {
	cluster Cluster
	log     *logrus.Entry
	idle    time.Duration

	ready    atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
	err      error
}

// New returns a supervisor for c. Call Start to run it.
func New(c Cluster, log *logrus.Entry) *Supervisor {
	return &Supervisor{
		cluster: c,
		log:     log.WithField("component", "supervisor"),
		idle:    DefaultIdleInterval,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetIdleInterval changes the idle tick. It must be called before Start.
func (s *Supervisor) SetIdleInterval(d time.Duration) {
	s.idle = d
}

// Start launches the background goroutine. Only the first call has an
// effect.
func (s *Supervisor) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
}

func (s *Supervisor) run() {
	defer close(s.done)

	// startup runs to completion; it is not cancelled by a stop request
	if err := s.cluster.Startup(context.Background()); err != nil {
		s.log.WithError(err).Error("cluster failed to start")
		s.err = err
		return
	}
	s.ready.Store(true)
	s.log.Info("cluster ready")

	ticker := time.NewTicker(s.idle)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			s.log.Info("stop requested")
			s.cluster.Shutdown(context.Background())
			return
		case <-ticker.C:
		}
	}
}

// Ready reports whether startup succeeded. It never reverts to false.
func (s *Supervisor) Ready() bool {
	return s.ready.Load()
}

// Done is closed when the background goroutine has exited, after a failed
// startup or after shutdown.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Err returns the startup error. Only meaningful after Done is closed.
func (s *Supervisor) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// RequestStop asks the supervisor to shut the cluster down. It returns at
// once; wait on Done for completion.
func (s *Supervisor) RequestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
