// Command minicass runs a local test cluster from the command line.
//
//	minicass start --nodes 3 --dir target/cassandra --classpath 'lib/*.jar'
//	minicass start --mode embedded --metrics-addr :9100
//	minicass render --nodes 3 --node 1
//
// start blocks until interrupted, then stops every node.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/dreamware/minicass"
	"github.com/dreamware/minicass/internal/cluster"
	"github.com/dreamware/minicass/internal/nodeconf"
)

var logFatal = logrus.Fatalf

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logFatal("minicass: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "minicass",
		Usage: "run a local multi-node cluster for integration tests",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "logrus level: debug, info, warn, error"},
		},
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "start the cluster and keep it running until interrupted",
				Flags: append(clusterFlags(),
					&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address"},
				),
				Action: startAction,
			},
			{
				Name:  "render",
				Usage: "print the generated configuration of one node",
				Flags: append(clusterFlags(),
					&cli.IntFlag{Name: "node", Value: 0, Usage: "node index"},
				),
				Action: renderAction,
			},
		},
	}
}

func clusterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML cluster description; flags override it"},
		&cli.IntFlag{Name: "nodes", Aliases: []string{"n"}, Usage: "number of nodes"},
		&cli.IntFlag{Name: "vnodes", Usage: "virtual nodes per node"},
		&cli.StringFlag{Name: "base-ip", Usage: "address of node 0; node i adds i to the last octet"},
		&cli.IntFlag{Name: "native-port", Usage: "client native protocol port"},
		&cli.IntFlag{Name: "storage-port", Usage: "inter-node storage port"},
		&cli.IntFlag{Name: "ssl-storage-port", Usage: "encrypted inter-node storage port"},
		&cli.IntFlag{Name: "rpc-port", Usage: "legacy RPC port"},
		&cli.PathFlag{Name: "dir", Usage: "cluster root directory"},
		&cli.StringSliceFlag{Name: "classpath", Usage: "node dependency artifact (repeatable)"},
		&cli.StringFlag{Name: "mode", Usage: "node backend: process or embedded"},
		&cli.StringFlag{Name: "java", EnvVars: []string{"MINICASS_JAVA"}, Usage: "node executable in process mode"},
		&cli.StringFlag{Name: "main-class", Usage: "main class passed to the node executable"},
		&cli.StringSliceFlag{Name: "jvm-opt", Usage: "option passed before -cp (repeatable)"},
		&cli.StringFlag{Name: "cluster-name", Usage: "cluster name; generated when empty"},
		&cli.PathFlag{Name: "template", Usage: "baseline node configuration replacing the built-in one"},
		&cli.IntFlag{Name: "max-attempts", Usage: "readiness probe attempts"},
		&cli.DurationFlag{Name: "interval", Usage: "pause before each readiness probe"},
		&cli.BoolFlag{Name: "skip", EnvVars: []string{"MINICASS_SKIP"}, Usage: "do nothing"},
	}
}

// configFromContext loads --config over the defaults and applies every
// flag that was set explicitly.
func configFromContext(c *cli.Context) (cluster.Config, error) {
	cfg := cluster.DefaultConfig()
	if path := c.Path("config"); path != "" {
		var err error
		if cfg, err = cluster.LoadFile(path); err != nil {
			return cfg, err
		}
	}

	ints := map[string]*int{
		"nodes":            &cfg.NumNodes,
		"vnodes":           &cfg.NumVirtualNodes,
		"native-port":      &cfg.NativePort,
		"storage-port":     &cfg.StoragePort,
		"ssl-storage-port": &cfg.SSLStoragePort,
		"rpc-port":         &cfg.RPCPort,
		"max-attempts":     &cfg.Readiness.MaxAttempts,
	}
	for name, dst := range ints {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	strs := map[string]*string{
		"base-ip":      &cfg.BaseIP,
		"java":         &cfg.Launcher.Executable,
		"main-class":   &cfg.Launcher.MainClass,
		"cluster-name": &cfg.ClusterName,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.IsSet("dir") {
		cfg.RootDir = c.Path("dir")
	}
	if c.IsSet("template") {
		cfg.Template = c.Path("template")
	}
	if c.IsSet("mode") {
		cfg.Mode = cluster.Mode(c.String("mode"))
	}
	if c.IsSet("classpath") {
		cfg.Classpath = expandClasspath(c.StringSlice("classpath"))
	}
	if c.IsSet("jvm-opt") {
		cfg.Launcher.JVMOptions = c.StringSlice("jvm-opt")
	}
	if c.IsSet("interval") {
		cfg.Readiness.Interval = c.Duration("interval")
	}
	if c.IsSet("skip") {
		cfg.Skip = c.Bool("skip")
	}
	return cfg, cfg.Validate()
}

// expandClasspath resolves glob patterns such as lib/*.jar; entries that
// match nothing are kept as given.
func expandClasspath(entries []string) []string {
	var out []string
	for _, e := range entries {
		matches, err := filepath.Glob(e)
		if err != nil || len(matches) == 0 {
			out = append(out, e)
			continue
		}
		out = append(out, matches...)
	}
	return out
}

func logger(c *cli.Context) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(c.App.ErrWriter)
	if lvl, err := logrus.ParseLevel(c.String("log-level")); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func startAction(c *cli.Context) error {
	cfg, err := configFromContext(c)
	if err != nil {
		return err
	}
	log := logger(c)

	opts := []minicass.Option{minicass.WithLogger(log)}
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, minicass.WithRegisterer(reg))

		srv := serveMetrics(addr, reg, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := minicass.NewHandle(opts...)
	if err := h.Start(ctx, cfg); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			log.Info("interrupted during startup")
			return nil
		}
		return err
	}
	if !h.Active() {
		return nil
	}
	log.WithField("seeds", h.Seeds()).Info("cluster running; interrupt to stop")

	<-ctx.Done()

	shutdown, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return h.Stop(shutdown)
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("address", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server")
		}
	}()
	return srv
}

func renderAction(c *cli.Context) error {
	cfg, err := configFromContext(c)
	if err != nil {
		return err
	}
	seeds, err := cluster.Seeds(cfg)
	if err != nil {
		return err
	}
	index := c.Int("node")
	if index < 0 || index >= len(seeds) {
		return fmt.Errorf("%w: node %d out of range for %d nodes", cluster.ErrConfiguration, index, len(seeds))
	}
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return err
	}
	baseline, err := nodeconf.LoadBaseline(cfg.Template)
	if err != nil {
		return err
	}

	doc, err := nodeconf.Build(baseline, cluster.NewIdentity(root, index, seeds[index]), seeds, cfg)
	if err != nil {
		return err
	}
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}
