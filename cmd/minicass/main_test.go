package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/dreamware/minicass/internal/cluster"
)

func testApp() (*cli.App, *bytes.Buffer) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	return app, &out
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRender(t *testing.T) {
	app, out := testApp()
	dir := t.TempDir()

	err := app.Run([]string{"minicass", "render", "--nodes", "3", "--node", "2", "--dir", dir, "--native-port", "19042"})
	require.NoError(t, err)

	rendered := out.String()
	assert.Contains(t, rendered, "listen_address: 127.0.0.3")
	assert.Contains(t, rendered, "native_transport_port: 19042")
	assert.Contains(t, rendered, "127.0.0.1,127.0.0.2,127.0.0.3")
	assert.Contains(t, rendered, filepath.Join(dir, "node-2", "data"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "render must not touch disk")
}

func TestRenderErrors(t *testing.T) {
	app, _ := testApp()
	err := app.Run([]string{"minicass", "render", "--nodes", "2", "--node", "2"})
	assert.ErrorIs(t, err, cluster.ErrConfiguration)

	app, _ = testApp()
	err = app.Run([]string{"minicass", "render", "--base-ip", "127.0.0"})
	assert.ErrorIs(t, err, cluster.ErrConfiguration)
}

// TestConfigFlagsOverrideFile checks that explicit flags win over the
// config file and unset flags leave it alone.
func TestConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_nodes: 2\nrpc_port: 19160\nmode: embedded\n"), 0o644))

	var got cluster.Config
	app := &cli.App{
		Flags: clusterFlags(),
		Action: func(c *cli.Context) error {
			var err error
			got, err = configFromContext(c)
			return err
		},
	}
	require.NoError(t, app.Run([]string{"x", "--config", path, "--nodes", "4", "--interval", "250ms",
		"--classpath", "a.jar", "--classpath", "b.jar", "--jvm-opt", "-Xmx1g"}))

	assert.Equal(t, 4, got.NumNodes)
	assert.Equal(t, 19160, got.RPCPort)
	assert.Equal(t, cluster.ModeEmbedded, got.Mode)
	assert.Equal(t, 250*time.Millisecond, got.Readiness.Interval)
	assert.Equal(t, []string{"a.jar", "b.jar"}, got.Classpath)
	assert.Equal(t, []string{"-Xmx1g"}, got.Launcher.JVMOptions)
	assert.Equal(t, 9042, got.NativePort)
}

func TestExpandClasspath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jar", "b.jar", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	got := expandClasspath([]string{filepath.Join(dir, "*.jar"), "/missing/lib.jar"})
	assert.Equal(t, []string{filepath.Join(dir, "a.jar"), filepath.Join(dir, "b.jar"), "/missing/lib.jar"}, got)
}

func TestStartSkip(t *testing.T) {
	app, _ := testApp()
	dir := filepath.Join(t.TempDir(), "cluster")
	require.NoError(t, app.Run([]string{"minicass", "start", "--skip", "--dir", dir}))
	assert.NoDirExists(t, dir)
}

// TestStartEmbedded runs an embedded cluster until the context is cancelled.
func TestStartEmbedded(t *testing.T) {
	app, _ := testApp()
	port, storagePort := freePort(t), freePort(t)
	dir := filepath.Join(t.TempDir(), "cluster")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- app.RunContext(ctx, []string{"minicass", "start",
			"--mode", "embedded",
			"--dir", dir,
			"--native-port", strconv.Itoa(port),
			"--storage-port", strconv.Itoa(storagePort),
			"--interval", "50ms",
			"--max-attempts", "100",
		})
	}()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	require.Eventually(t, func() bool {
		c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 20*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("start did not return after cancellation")
	}
	assert.FileExists(t, filepath.Join(dir, "node-0", "conf", "cassandra.yaml"))

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err, "node still listening after stop")
}
