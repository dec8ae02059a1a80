// Package node manages a single cluster member: it materializes the node's
// directory tree and configuration, launches it through a Launcher and
// stops it again.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/minicass/internal/cluster"
	"github.com/dreamware/minicass/internal/metrics"
	"github.com/dreamware/minicass/internal/nodeconf"
)

// State is the lifecycle position of a Node.
type State int

const (
	Unconfigured State = iota
	Configured
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a Node. Identity, Launcher and Config are required.
type Options struct {
	Identity cluster.NodeIdentity
	Seeds    []string
	Config   cluster.Config
	Baseline *nodeconf.Document // built-in baseline when nil
	Launcher Launcher
	Logger   *logrus.Entry
	Metrics  metrics.Recorder
}

// Node is one member of the cluster.
type Node struct {
	id       cluster.NodeIdentity
	seeds    []string
	cfg      cluster.Config
	baseline *nodeconf.Document
	launcher Launcher
	log      *logrus.Entry
	metrics  metrics.Recorder

	mu       sync.Mutex
	state    State
	instance Instance
}

// New returns an Unconfigured node.
func New(opts Options) *Node {
	if opts.Baseline == nil {
		opts.Baseline = nodeconf.DefaultBaseline()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	return &Node{
		id:       opts.Identity,
		seeds:    opts.Seeds,
		cfg:      opts.Config,
		baseline: opts.Baseline,
		launcher: opts.Launcher,
		log: opts.Logger.WithFields(logrus.Fields{
			"component": "node",
			"node":      opts.Identity.Index,
			"address":   opts.Identity.Address,
		}),
		metrics: opts.Metrics,
	}
}

// Identity returns the node's identity.
func (n *Node) Identity() cluster.NodeIdentity { return n.id }

// ConfigPath is where Setup writes the node configuration.
func (n *Node) ConfigPath() string {
	return filepath.Join(n.id.ConfDir, nodeconf.ConfigFileName)
}

// LogConfigPath is where Setup writes the log-routing properties.
func (n *Node) LogConfigPath() string {
	return filepath.Join(n.id.ConfDir, nodeconf.LogConfigFileName)
}

// State returns the current lifecycle state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Setup recreates the node's directory tree from scratch and writes its
// configuration files. The cluster root must already exist. Every failure
// wraps cluster.ErrProvisioning except a configuration that cannot be
// rendered, which wraps cluster.ErrConfiguration.
func (n *Node) Setup() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == Running {
		return fmt.Errorf("%w: %s is running", cluster.ErrUsage, n.id)
	}

	parent := filepath.Dir(n.id.RootDir)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: cluster root %s does not exist", cluster.ErrProvisioning, parent)
	}
	if err := os.RemoveAll(n.id.RootDir); err != nil {
		return fmt.Errorf("%w: remove %s: %v", cluster.ErrProvisioning, n.id.RootDir, err)
	}
	if err := os.Mkdir(n.id.RootDir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", cluster.ErrProvisioning, n.id.RootDir, err)
	}
	for _, dir := range n.id.Dirs() {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", cluster.ErrProvisioning, dir, err)
		}
	}

	doc, err := nodeconf.Build(n.baseline, n.id, n.seeds, n.cfg)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", cluster.ErrConfiguration, n.id, err)
	}
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", cluster.ErrConfiguration, n.id, err)
	}
	if err := os.WriteFile(n.ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", cluster.ErrProvisioning, n.ConfigPath(), err)
	}
	if err := os.WriteFile(n.LogConfigPath(), nodeconf.LogProperties(n.id), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", cluster.ErrProvisioning, n.LogConfigPath(), err)
	}

	n.state = Configured
	n.log.WithField("dir", n.id.RootDir).Debug("node configured")
	return nil
}

// Start launches the node. A launch failure is logged and leaves the node
// Configured; it shows up later as a liveness failure, not as an error.
func (n *Node) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != Configured {
		n.log.WithField("state", n.state).Warn("start ignored: node is not configured")
		return
	}

	spec := Spec{
		Identity:   n.id,
		ConfigPath: n.ConfigPath(),
		Classpath:  Classpath(n.id, n.cfg.Classpath),
	}
	mode := string(n.launcher.Mode())

	inst, err := n.launcher.Launch(ctx, spec)
	if err != nil {
		n.metrics.NodeStarted(mode, false)
		n.log.WithError(err).WithField("mode", mode).Warn("node failed to launch")
		return
	}
	n.instance = inst
	n.state = Running
	n.metrics.NodeStarted(mode, true)
	n.log.WithField("mode", mode).Info("node launched")
}

// Alive reports whether the node was launched and is still running.
func (n *Node) Alive() bool {
	n.mu.Lock()
	inst := n.instance
	n.mu.Unlock()
	return inst != nil && inst.Alive()
}

// Stop terminates a launched node. A node that was never launched is left
// alone and Stop returns nil.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.instance == nil {
		n.log.Debug("stop ignored: node has no running instance")
		return nil
	}
	err := n.instance.Stop(ctx)
	n.instance = nil
	n.state = Stopped
	if err != nil {
		return fmt.Errorf("stop %s: %w", n.id, err)
	}
	n.log.Info("node stopped")
	return nil
}
