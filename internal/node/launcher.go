package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/minicass/internal/cluster"
	"github.com/dreamware/minicass/internal/embedded"
)

// OutputLogName receives the stdout and stderr of process-mode nodes.
const OutputLogName = "output.log"

// ConfEnv points a process-mode node at its conf directory.
const ConfEnv = "CASSANDRA_CONF"

// Spec is everything a Launcher needs to bring up one node.
type Spec struct {
	Identity   cluster.NodeIdentity
	ConfigPath string // generated configuration document
	Classpath  string // conf dir followed by the dependency artifacts
}

// Instance is a launched node.
type Instance interface {
	// Alive reports whether the node is still running.
	Alive() bool
	// Stop asks the node to terminate.
	Stop(ctx context.Context) error
}

// Launcher starts nodes in one execution mode.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Instance, error)
	Mode() cluster.Mode
}

// NewLauncher returns the launcher for cfg.Mode.
func NewLauncher(cfg cluster.Config, log *logrus.Entry) Launcher {
	if cfg.Mode == cluster.ModeEmbedded {
		return &EmbeddedLauncher{Log: log}
	}
	return &ProcessLauncher{
		Executable: cfg.Launcher.Executable,
		MainClass:  cfg.Launcher.MainClass,
		JVMOptions: cfg.Launcher.JVMOptions,
	}
}

// Classpath joins the conf directory, with a trailing separator so it is
// treated as a directory entry, and every artifact with the OS list
// separator.
func Classpath(id cluster.NodeIdentity, artifacts []string) string {
	entries := make([]string, 0, len(artifacts)+1)
	entries = append(entries, id.ConfDir+string(filepath.Separator))
	entries = append(entries, artifacts...)
	return strings.Join(entries, string(os.PathListSeparator))
}

// ProcessLauncher runs each node as a child process:
//
//	<Executable> <JVMOptions...> -cp <classpath> <MainClass>
//
// with CASSANDRA_CONF set to the node's conf directory, the node root as
// working directory and output appended to output.log in the node root.
type ProcessLauncher struct {
	Executable string
	MainClass  string
	JVMOptions []string
}

// Args returns the command-line arguments (without the executable) for spec.
func (l *ProcessLauncher) Args(spec Spec) []string {
	args := append([]string{}, l.JVMOptions...)
	args = append(args, "-cp", spec.Classpath)
	if l.MainClass != "" {
		args = append(args, l.MainClass)
	}
	return args
}

// Launch starts the child. The child is not bound to ctx; it lives until
// Stop is called or it exits on its own.
func (l *ProcessLauncher) Launch(_ context.Context, spec Spec) (Instance, error) {
	out, err := os.OpenFile(filepath.Join(spec.Identity.RootDir, OutputLogName),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output log: %w", err)
	}

	cmd := exec.Command(l.Executable, l.Args(spec)...)
	cmd.Dir = spec.Identity.RootDir
	cmd.Env = append(os.Environ(), ConfEnv+"="+spec.Identity.ConfDir)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("start %s: %w", l.Executable, err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		_ = out.Close()
		close(p.done)
	}()
	return p, nil
}

// Mode returns cluster.ModeProcess.
func (l *ProcessLauncher) Mode() cluster.Mode { return cluster.ModeProcess }

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop sends SIGTERM and returns without waiting for the exit.
func (p *process) Stop(context.Context) error {
	err := p.cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

// EmbeddedLauncher runs each node as an embedded.Service inside this
// process, configured from the node's generated configuration file.
type EmbeddedLauncher struct {
	Log *logrus.Entry
}

// Launch loads the node configuration and starts the service. Ports are
// bound before Launch returns.
func (l *EmbeddedLauncher) Launch(_ context.Context, spec Spec) (Instance, error) {
	settings, err := embedded.LoadSettings(spec.ConfigPath)
	if err != nil {
		return nil, err
	}
	log := l.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	svc := embedded.New(settings, log.WithField("node", spec.Identity.Index))
	if err := svc.Start(); err != nil {
		return nil, err
	}
	return service{svc}, nil
}

// Mode returns cluster.ModeEmbedded.
func (l *EmbeddedLauncher) Mode() cluster.Mode { return cluster.ModeEmbedded }

type service struct {
	*embedded.Service
}

func (s service) Alive() bool {
	select {
	case <-s.Done():
		return false
	default:
		return true
	}
}

// Stop shuts the service down and waits for it.
func (s service) Stop(ctx context.Context) error {
	return s.Shutdown(ctx)
}
