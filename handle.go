package minicass

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/minicass/internal/metrics"
	"github.com/dreamware/minicass/internal/metrics/prom"
	"github.com/dreamware/minicass/internal/orchestrator"
	"github.com/dreamware/minicass/internal/supervisor"
)

// DefaultPollInterval is how often Start checks whether the cluster is up.
const DefaultPollInterval = time.Second

// Handle starts and stops at most one cluster at a time. The zero value is
// not usable; create one with NewHandle and share it between the setup and
// teardown of a test suite.
type Handle struct {
	log     *logrus.Entry
	poll    time.Duration
	metrics metrics.Recorder

	mu     sync.Mutex
	active *run
}

type run struct {
	orch *orchestrator.Orchestrator
	sup  *supervisor.Supervisor
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Handle) { h.log = log.WithField("component", "handle") }
}

// WithPollInterval changes how often Start checks for readiness.
func WithPollInterval(d time.Duration) Option {
	return func(h *Handle) { h.poll = d }
}

// WithRegisterer exports cluster metrics to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Handle) { h.metrics = prom.NewRecorder(reg) }
}

// NewHandle returns a Handle with no active cluster.
func NewHandle(opts ...Option) *Handle {
	h := &Handle{
		poll:    DefaultPollInterval,
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logrus.StandardLogger().WithField("component", "handle")
	}
	return h
}

// Start launches a cluster for cfg and blocks until it is reachable or its
// startup has failed. It returns ErrUsage if this handle already has an
// active cluster. If cfg.Skip is set nothing happens.
//
// Cancelling ctx abandons the wait: the cluster is stopped as soon as its
// startup has finished and Start returns ctx.Err().
func (h *Handle) Start(ctx context.Context, cfg Config) error {
	if cfg.Skip {
		h.log.Info("cluster startup skipped")
		return nil
	}

	h.mu.Lock()
	if h.active != nil {
		h.mu.Unlock()
		h.log.Error("start called while a cluster is active")
		return fmt.Errorf("%w: a cluster is already active on this handle", ErrUsage)
	}
	r := &run{
		orch: orchestrator.New(cfg,
			orchestrator.WithLogger(h.log),
			orchestrator.WithMetrics(h.metrics),
		),
	}
	r.sup = supervisor.New(r.orch, h.log)
	h.active = r
	h.mu.Unlock()

	r.sup.Start()

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()
	for !r.sup.Ready() {
		select {
		case <-r.sup.Done():
			if r.sup.Ready() {
				return nil
			}
			h.release(r)
			return r.sup.Err()
		case <-ctx.Done():
			r.sup.RequestStop()
			<-r.sup.Done()
			h.release(r)
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Stop shuts the active cluster down and waits until its supervisor has
// exited. Without an active cluster it only logs.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	r := h.active
	h.mu.Unlock()

	if r == nil {
		h.log.Info("no active cluster to stop")
		return nil
	}

	r.sup.RequestStop()
	select {
	case <-r.sup.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	h.release(r)
	return nil
}

func (h *Handle) release(r *run) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == r {
		h.active = nil
	}
}

func (h *Handle) current() *run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Active reports whether a cluster is starting or running.
func (h *Handle) Active() bool {
	return h.current() != nil
}

// Ready reports whether the active cluster has become reachable.
func (h *Handle) Ready() bool {
	r := h.current()
	return r != nil && r.sup.Ready()
}

// Seeds returns the seed list of the active cluster, or nil.
func (h *Handle) Seeds() []string {
	if r := h.current(); r != nil {
		return r.orch.Seeds()
	}
	return nil
}

// Config returns the configuration of the active cluster, including its
// generated cluster name.
func (h *Handle) Config() (Config, bool) {
	if r := h.current(); r != nil {
		return r.orch.Config(), true
	}
	return Config{}, false
}

// Nodes returns the identities of the active cluster's nodes.
func (h *Handle) Nodes() []NodeIdentity {
	r := h.current()
	if r == nil {
		return nil
	}
	nodes := r.orch.Nodes()
	ids := make([]NodeIdentity, len(nodes))
	for i, n := range nodes {
		ids[i] = n.Identity()
	}
	return ids
}
