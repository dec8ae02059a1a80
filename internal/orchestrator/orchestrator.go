// Package orchestrator brings a local cluster up and down: it derives the
// seed list, provisions every node's directory tree, refuses to run against
// an environment that already answers, launches the nodes and waits until
// the cluster is reachable or a node dies.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/dreamware/minicass/internal/cluster"
	"github.com/dreamware/minicass/internal/metrics"
	"github.com/dreamware/minicass/internal/node"
	"github.com/dreamware/minicass/internal/nodeconf"
	"github.com/dreamware/minicass/internal/probe"
)

// MarkerFile is written to the cluster root after it is created. A
// non-empty root without it was not created here and is never deleted.
const MarkerFile = ".minicass"

// State is the lifecycle position of an Orchestrator.
type State int

const (
	NotStarted State = iota
	Starting
	Ready
	Failed
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Prober is the readiness check the orchestrator relies on.
type Prober interface {
	ProbeOnce(ctx context.Context, addrs []string, port int) bool
	WaitUntilReady(ctx context.Context, addrs []string, port int, alive func() bool, maxAttempts int, interval time.Duration) (probe.Result, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(log *logrus.Entry) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithProber replaces the TCP prober.
func WithProber(p Prober) Option {
	return func(o *Orchestrator) { o.prober = p }
}

// WithLauncher replaces the launcher selected from the configured mode.
func WithLauncher(l node.Launcher) Option {
	return func(o *Orchestrator) { o.launcher = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithBaseline sets the baseline configuration document, overriding
// Config.Template.
func WithBaseline(doc *nodeconf.Document) Option {
	return func(o *Orchestrator) { o.baseline = doc }
}

// Orchestrator owns one cluster. Startup and Shutdown are meant to be
// driven from a single goroutine; accessors are safe from any goroutine.
type Orchestrator struct {
	cfg      cluster.Config
	log      *logrus.Entry
	prober   Prober
	launcher node.Launcher
	metrics  metrics.Recorder
	baseline *nodeconf.Document
	diagnose func(ctx context.Context, port int) string

	mu    sync.Mutex
	state State
	seeds []string
	nodes []*node.Node
}

// New returns a NotStarted orchestrator for cfg.
func New(cfg cluster.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		metrics:  metrics.Nop(),
		diagnose: describeListeners,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	o.log = o.log.WithField("component", "orchestrator")
	if o.prober == nil {
		o.prober = probe.New(o.log, probe.WithMetrics(o.metrics))
	}
	if o.launcher == nil {
		o.launcher = node.NewLauncher(cfg, o.log)
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Seeds returns the seed list of the last startup.
func (o *Orchestrator) Seeds() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.seeds)
}

// Nodes returns the nodes of the last startup in index order.
func (o *Orchestrator) Nodes() []*node.Node {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.nodes)
}

// Config returns the configuration in effect, including a generated
// cluster name once startup has begun.
func (o *Orchestrator) Config() cluster.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Startup brings the cluster up and blocks until it is reachable. It fails
// with cluster.ErrUsage while a cluster is starting, running or stopping.
// On any other failure the orchestrator ends up Failed with no node left
// running.
func (o *Orchestrator) Startup(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case Starting, Ready, Stopping:
		state := o.state
		o.mu.Unlock()
		o.log.WithField("state", state).Error("startup rejected")
		return fmt.Errorf("%w: startup called while cluster is %s", cluster.ErrUsage, state)
	}
	o.state = Starting
	o.seeds, o.nodes = nil, nil
	o.mu.Unlock()

	began := time.Now()
	outcome, err := o.startup(ctx)
	o.metrics.StartupCompleted(outcome, time.Since(began))

	o.mu.Lock()
	if err != nil {
		o.state = Failed
	} else {
		o.state = Ready
	}
	o.mu.Unlock()

	if err != nil {
		o.log.WithError(err).Error("cluster startup failed")
		return err
	}
	o.log.WithFields(logrus.Fields{
		"nodes":   o.Config().NumNodes,
		"elapsed": time.Since(began).Round(time.Millisecond),
	}).Info("cluster ready")
	return nil
}

func (o *Orchestrator) startup(ctx context.Context) (string, error) {
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return metrics.OutcomeFailed, err
	}
	seeds, err := cluster.Seeds(cfg)
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("%w: root directory %s: %v", cluster.ErrConfiguration, cfg.RootDir, err)
	}
	if cfg.ClusterName == "" {
		cfg.ClusterName = "minicass-" + uuid.NewString()[:8]
	}
	baseline := o.baseline
	if baseline == nil {
		if baseline, err = nodeconf.LoadBaseline(cfg.Template); err != nil {
			return metrics.OutcomeFailed, err
		}
	}

	nodes := make([]*node.Node, len(seeds))
	for i, addr := range seeds {
		nodes[i] = node.New(node.Options{
			Identity: cluster.NewIdentity(root, i, addr),
			Seeds:    seeds,
			Config:   cfg,
			Baseline: baseline,
			Launcher: o.launcher,
			Logger:   o.log,
			Metrics:  o.metrics,
		})
	}

	o.mu.Lock()
	o.cfg = cfg
	o.seeds = seeds
	o.nodes = nodes
	o.mu.Unlock()

	log := o.log.WithFields(logrus.Fields{"root": root, "cluster_name": cfg.ClusterName})
	log.WithField("seeds", strings.Join(seeds, ",")).Info("starting cluster")

	if err := prepareRoot(root, cfg.ClusterName); err != nil {
		return metrics.OutcomeFailed, err
	}
	for _, n := range nodes {
		if err := n.Setup(); err != nil {
			return metrics.OutcomeFailed, err
		}
	}

	if o.prober.ProbeOnce(ctx, seeds, cfg.NativePort) {
		err := fmt.Errorf("%w: %s already answers on native port %d before any node was started",
			cluster.ErrStaleEnvironment, strings.Join(seeds, ","), cfg.NativePort)
		if who := o.diagnose(ctx, cfg.NativePort); who != "" {
			err = fmt.Errorf("%w (listening: %s)", err, who)
		}
		return metrics.OutcomeFailed, err
	}

	for _, n := range nodes {
		n.Start(ctx)
	}

	res, err := o.prober.WaitUntilReady(ctx, seeds, cfg.NativePort,
		func() bool { return o.allAlive(nodes) },
		cfg.Readiness.MaxAttempts, cfg.Readiness.Interval)
	var dead string
	if res == probe.Dead {
		dead = describeDead(nodes)
	}
	if err != nil || res != probe.Ready {
		cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		o.stopAll(cleanup, nodes)
	}
	switch {
	case err != nil:
		return metrics.OutcomeFailed, fmt.Errorf("waiting for cluster: %w", err)
	case res == probe.Dead:
		return metrics.OutcomeDied, fmt.Errorf("%w: %s", cluster.ErrNodeDied, dead)
	case res == probe.TimedOut:
		return metrics.OutcomeTimeout, fmt.Errorf("%w: no answer on %s port %d after %d attempts every %s",
			cluster.ErrTimedOut, strings.Join(seeds, ","), cfg.NativePort,
			cfg.Readiness.MaxAttempts, cfg.Readiness.Interval)
	}
	return metrics.OutcomeReady, nil
}

// allAlive is the liveness check of the readiness wait.
func (o *Orchestrator) allAlive(nodes []*node.Node) bool {
	alive := 0
	for _, n := range nodes {
		if n.Alive() {
			alive++
		}
	}
	o.metrics.NodesAlive(alive)

	if i := slices.IndexFunc(nodes, func(n *node.Node) bool { return !n.Alive() }); i >= 0 {
		o.log.WithFields(logrus.Fields{
			"node":    nodes[i].Identity().Index,
			"address": nodes[i].Identity().Address,
			"state":   nodes[i].State(),
		}).Warn("node is not running")
		return false
	}
	return true
}

func describeDead(nodes []*node.Node) string {
	var dead []string
	for _, n := range nodes {
		if !n.Alive() {
			dead = append(dead, n.Identity().String())
		}
	}
	if len(dead) == 0 {
		return "a node exited before the cluster became reachable"
	}
	return strings.Join(dead, ", ") + " not running before the cluster became reachable"
}

// prepareRoot recreates root from scratch. A non-empty root lacking the
// marker file is refused rather than deleted.
func prepareRoot(root, clusterName string) error {
	entries, err := os.ReadDir(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("%w: inspect %s: %v", cluster.ErrProvisioning, root, err)
	case len(entries) > 0:
		if _, err := os.Stat(filepath.Join(root, MarkerFile)); err != nil {
			return fmt.Errorf("%w: %s is not empty and was not created by minicass; refusing to delete it",
				cluster.ErrProvisioning, root)
		}
	}

	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("%w: remove %s: %v", cluster.ErrProvisioning, root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", cluster.ErrProvisioning, root, err)
	}
	marker := fmt.Sprintf("cluster_name: %s\ncreated: %s\n", clusterName, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(root, MarkerFile), []byte(marker), 0o644); err != nil {
		return fmt.Errorf("%w: write marker: %v", cluster.ErrProvisioning, err)
	}
	return nil
}

// Shutdown stops every node, best effort. Calling it on a cluster that is
// neither starting nor ready only logs a warning.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	if o.state != Ready && o.state != Starting {
		state := o.state
		o.mu.Unlock()
		o.log.WithField("state", state).Warn("shutdown ignored: cluster is not running")
		return
	}
	o.state = Stopping
	nodes := o.nodes
	o.mu.Unlock()

	o.log.Info("stopping cluster")
	o.stopAll(ctx, nodes)

	o.mu.Lock()
	o.state = Stopped
	o.mu.Unlock()
	o.log.Info("cluster stopped")
}

// stopTimeout bounds the cleanup after a failed startup.
const stopTimeout = 30 * time.Second

func (o *Orchestrator) stopAll(ctx context.Context, nodes []*node.Node) {
	for _, n := range nodes {
		if err := n.Stop(ctx); err != nil {
			o.log.WithError(err).WithField("node", n.Identity().Index).Warn("node did not stop cleanly")
		}
	}
	o.metrics.NodesAlive(0)
}
