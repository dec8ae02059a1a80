// Command cassnode is a stand-in node executable for process-mode clusters.
// It accepts the command line a JVM node would get,
//
//	cassnode [jvm options] -cp <classpath> [main class]
//
// reads cassandra.yaml from $CASSANDRA_CONF and serves the embedded node
// until it receives SIGTERM or SIGINT. Point the launcher's executable at it
// to run a cluster without a JVM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/minicass/internal/embedded"
	"github.com/dreamware/minicass/internal/node"
	"github.com/dreamware/minicass/internal/nodeconf"
)

var logFatal = logrus.Fatalf

func main() {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(getenv("CASSNODE_LOG_LEVEL", "info")); err == nil {
		log.SetLevel(lvl)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if err := run(os.Args[1:], os.Getenv(node.ConfEnv), stop, logrus.NewEntry(log)); err != nil {
		logFatal("cassnode: %v", err)
	}
}

// run serves the node configured in confDir until stop fires or the
// service fails.
func run(args []string, confDir string, stop <-chan os.Signal, log *logrus.Entry) error {
	cmdline, err := parseArgs(args)
	if err != nil {
		return err
	}
	if confDir == "" {
		return fmt.Errorf("%s is not set", node.ConfEnv)
	}

	settings, err := embedded.LoadSettings(filepath.Join(confDir, nodeconf.ConfigFileName))
	if err != nil {
		return err
	}
	log = log.WithField("pid", os.Getpid())
	log.WithFields(logrus.Fields{
		"main_class": cmdline.mainClass,
		"classpath":  len(cmdline.classpath),
	}).Debug("ignoring JVM command line")

	svc := embedded.New(settings, log)
	if err := svc.Start(); err != nil {
		return err
	}

	select {
	case sig := <-stop:
		log.WithField("signal", sig).Info("shutting down")
	case <-svc.Done():
		return svc.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return svc.Shutdown(ctx)
}

type commandLine struct {
	classpath []string
	mainClass string
	options   []string
}

// parseArgs splits a JVM-style command line. Options before the main class
// are kept verbatim; -cp and -classpath take the next argument.
func parseArgs(args []string) (commandLine, error) {
	var c commandLine
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-cp" || arg == "-classpath":
			if i+1 >= len(args) {
				return c, fmt.Errorf("%s needs an argument", arg)
			}
			i++
			c.classpath = strings.Split(args[i], string(os.PathListSeparator))
		case strings.HasPrefix(arg, "-"):
			c.options = append(c.options, arg)
		case c.mainClass == "":
			c.mainClass = arg
		default:
			return c, fmt.Errorf("unexpected argument %q after main class %s", arg, c.mainClass)
		}
	}
	return c, nil
}

// getenv returns the value of k, or def when it is unset or empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
