// Package probe answers "can a client connect to the cluster right now",
// once or in a bounded retry loop that also watches node liveness.
package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/minicass/internal/metrics"
)

// Result is the outcome of WaitUntilReady.
type Result int

const (
	// TimedOut means every attempt was used up while all nodes stayed alive.
	TimedOut Result = iota
	// Ready means at least one address accepted a connection.
	Ready
	// Dead means the liveness check failed before the cluster answered.
	Dead
)

func (r Result) String() string {
	switch r {
	case Ready:
		return "ready"
	case Dead:
		return "dead"
	default:
		return "timed out"
	}
}

// DialFunc opens a connection; it matches (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober issues TCP connects against the cluster's client port.
type Prober struct {
	dial    DialFunc
	timeout time.Duration
	log     *logrus.Entry
	metrics metrics.Recorder

	exhaustedOnce sync.Once
}

// Option configures a Prober.
type Option func(*Prober)

// WithDialer replaces the network dialer, mainly for tests.
func WithDialer(d DialFunc) Option {
	return func(p *Prober) { p.dial = d }
}

// WithTimeout bounds each individual connect. Defaults to 2s.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) { p.timeout = d }
}

// WithMetrics records every probe attempt.
func WithMetrics(m metrics.Recorder) Option {
	return func(p *Prober) { p.metrics = m }
}

// New returns a Prober logging through log.
func New(log *logrus.Entry, opts ...Option) *Prober {
	p := &Prober{
		timeout: 2 * time.Second,
		log:     log.WithField("component", "probe"),
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dial == nil {
		p.dial = (&net.Dialer{}).DialContext
	}
	return p
}

// ProbeOnce reports whether any of addrs accepts a connection on port. The
// connection is closed straight away; nothing is sent over it. Connection
// failures are the expected answer while a cluster boots and are logged at
// debug only.
func (p *Prober) ProbeOnce(ctx context.Context, addrs []string, port int) bool {
	reachable := false
	for _, addr := range addrs {
		if p.connect(ctx, net.JoinHostPort(addr, strconv.Itoa(port))) {
			reachable = true
			break
		}
	}
	p.metrics.ProbeAttempt(reachable)
	return reachable
}

func (p *Prober) connect(ctx context.Context, target string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", target)
	if err != nil {
		if isResourceExhaustion(err) {
			p.exhaustedOnce.Do(func() {
				p.log.WithError(err).WithField("address", target).Error(
					"ran out of local sockets while probing; on macOS every node address " +
						"other than 127.0.0.1 needs a loopback alias (sudo ifconfig lo0 alias <ip> up)")
			})
		} else {
			p.log.WithError(err).WithField("address", target).Debug("not reachable")
		}
		return false
	}
	_ = conn.Close()
	return true
}

// isResourceExhaustion recognises failures caused by the local host rather
// than by the target: out of descriptors, ports or buffers.
func isResourceExhaustion(err error) bool {
	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE, syscall.EADDRNOTAVAIL, syscall.ENOBUFS} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// WaitUntilReady makes up to maxAttempts attempts. Each attempt sleeps for
// interval, then checks alive and probes. A liveness failure ends the wait
// with Dead at once; a successful probe ends it with Ready. The returned
// error is non-nil only when ctx is cancelled.
func (p *Prober) WaitUntilReady(ctx context.Context, addrs []string, port int, alive func() bool, maxAttempts int, interval time.Duration) (Result, error) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(interval)
		}
		select {
		case <-ctx.Done():
			return TimedOut, ctx.Err()
		case <-timer.C:
		}

		if !alive() {
			p.log.WithField("attempt", attempt).Warn("node died while waiting for the cluster")
			return Dead, nil
		}
		if p.ProbeOnce(ctx, addrs, port) {
			p.log.WithField("attempt", attempt).Info("cluster is reachable")
			return Ready, nil
		}
		p.log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
		}).Info("cluster not reachable yet")
	}
	return TimedOut, nil
}
