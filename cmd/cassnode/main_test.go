package main

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/minicass/internal/cluster"
	"github.com/dreamware/minicass/internal/nodeconf"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestParseArgs(t *testing.T) {
	sep := string(os.PathListSeparator)
	tests := []struct {
		name    string
		args    []string
		want    commandLine
		wantErr bool
	}{
		{name: "empty"},
		{
			name: "jvm command line",
			args: []string{"-Xmx1g", "-Dfoo=bar", "-cp", "/conf/" + sep + "/lib/a.jar", "org.apache.cassandra.service.CassandraDaemon"},
			want: commandLine{
				classpath: []string{"/conf/", "/lib/a.jar"},
				mainClass: "org.apache.cassandra.service.CassandraDaemon",
				options:   []string{"-Xmx1g", "-Dfoo=bar"},
			},
		},
		{name: "long classpath flag", args: []string{"-classpath", "x"}, want: commandLine{classpath: []string{"x"}}},
		{name: "missing classpath", args: []string{"-cp"}, wantErr: true},
		{name: "trailing argument", args: []string{"Main", "extra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetenv(t *testing.T) {
	t.Setenv("CASSNODE_TEST_SET", "value")
	assert.Equal(t, "value", getenv("CASSNODE_TEST_SET", "default"))
	assert.Equal(t, "default", getenv("CASSNODE_TEST_UNSET", "default"))
}

func TestRunWithoutConf(t *testing.T) {
	err := run(nil, "", make(chan os.Signal), quietLog())
	assert.ErrorContains(t, err, "CASSANDRA_CONF")

	err = run(nil, t.TempDir(), make(chan os.Signal), quietLog())
	assert.Error(t, err)
}

// TestRun serves a generated node configuration until a signal arrives.
func TestRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := cluster.DefaultConfig()
	cfg.NativePort = port
	cfg.StoragePort = 0
	id := cluster.NewIdentity(t.TempDir(), 0, "127.0.0.1")
	for _, dir := range id.Dirs() {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	doc, err := nodeconf.Build(nodeconf.DefaultBaseline(), id, []string{"127.0.0.1"}, cfg)
	require.NoError(t, err)
	data, err := doc.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(id.ConfDir, nodeconf.ConfigFileName), data, 0o644))

	stop := make(chan os.Signal, 1)
	errc := make(chan error, 1)
	go func() { errc <- run([]string{"-cp", id.ConfDir, "Main"}, id.ConfDir, stop, quietLog()) }()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	require.Eventually(t, func() bool {
		c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 10*time.Second, 20*time.Millisecond)

	stop <- syscall.SIGTERM
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}
}
