package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSeeds verifies address derivation from the base IP and the
// rejection of malformed or overflowing inputs.
func TestSeeds(t *testing.T) {
	tests := []struct {
		name    string
		baseIP  string
		nodes   int
		want    []string
		wantErr bool
	}{
		{name: "single node", baseIP: "127.0.0.1", nodes: 1, want: []string{"127.0.0.1"}},
		{name: "three nodes", baseIP: "127.0.0.1", nodes: 3, want: []string{"127.0.0.1", "127.0.0.2", "127.0.0.3"}},
		{name: "offset start", baseIP: "10.1.2.250", nodes: 6, want: []string{
			"10.1.2.250", "10.1.2.251", "10.1.2.252", "10.1.2.253", "10.1.2.254", "10.1.2.255",
		}},
		{name: "overflow last octet", baseIP: "10.1.2.250", nodes: 7, wantErr: true},
		{name: "three components", baseIP: "127.0.1", nodes: 1, wantErr: true},
		{name: "five components", baseIP: "127.0.0.1.1", nodes: 1, wantErr: true},
		{name: "non numeric last", baseIP: "127.0.0.x", nodes: 1, wantErr: true},
		{name: "octet too large", baseIP: "127.0.0.256", nodes: 1, wantErr: true},
		{name: "hostname", baseIP: "localhost", nodes: 1, wantErr: true},
		{name: "zero nodes", baseIP: "127.0.0.1", nodes: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seeds, err := Seeds(Config{BaseIP: tt.baseIP, NumNodes: tt.nodes})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, seeds)
		})
	}
}

// TestSeedsDistinct checks that every derived address is unique for all
// node counts that fit in the last octet.
func TestSeedsDistinct(t *testing.T) {
	for n := 1; n <= 255; n++ {
		seeds, err := Seeds(Config{BaseIP: "127.0.0.1", NumNodes: n})
		require.NoError(t, err)
		require.Len(t, seeds, n)

		seen := make(map[string]bool, n)
		for _, s := range seeds {
			assert.False(t, seen[s], "duplicate seed %s for %d nodes", s, n)
			seen[s] = true
		}
	}
}

// TestNewIdentity verifies the per-node directory layout.
func TestNewIdentity(t *testing.T) {
	id := NewIdentity("/tmp/cluster", 2, "127.0.0.3")

	assert.Equal(t, 2, id.Index)
	assert.Equal(t, "127.0.0.3", id.Address)
	assert.Equal(t, "/tmp/cluster/node-2", id.RootDir)
	assert.Equal(t, "/tmp/cluster/node-2/conf", id.ConfDir)
	assert.Equal(t, "/tmp/cluster/node-2/data", id.DataDir)
	assert.Equal(t, "/tmp/cluster/node-2/commitlog", id.CommitLogDir)
	assert.Equal(t, "/tmp/cluster/node-2/saved_caches", id.SavedCachesDir)
	assert.Equal(t, "node-2", id.Name())
	assert.Equal(t, "node-2 (127.0.0.3)", id.String())
	assert.Len(t, id.Dirs(), 4)
}

// TestValidate exercises each configuration rule.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "embedded mode", mutate: func(c *Config) { c.Mode = ModeEmbedded }, ok: true},
		{name: "empty mode", mutate: func(c *Config) { c.Mode = "" }, ok: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "docker" }},
		{name: "no nodes", mutate: func(c *Config) { c.NumNodes = 0 }},
		{name: "no vnodes", mutate: func(c *Config) { c.NumVirtualNodes = 0 }},
		{name: "native port zero", mutate: func(c *Config) { c.NativePort = 0 }},
		{name: "rpc port too large", mutate: func(c *Config) { c.RPCPort = 70000 }},
		{name: "no root", mutate: func(c *Config) { c.RootDir = "" }},
		{name: "bad ip", mutate: func(c *Config) { c.BaseIP = "1.2.3" }},
		{name: "overflow", mutate: func(c *Config) { c.BaseIP = "127.0.0.255"; c.NumNodes = 2 }},
		{name: "no attempts", mutate: func(c *Config) { c.Readiness.MaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrConfiguration)
			}
		})
	}
}

// TestDefaultConfig pins the defaults the CLI relies on.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.NumNodes)
	assert.Equal(t, 256, cfg.NumVirtualNodes)
	assert.Equal(t, "127.0.0.1", cfg.BaseIP)
	assert.Equal(t, 9042, cfg.NativePort)
	assert.Equal(t, 7000, cfg.StoragePort)
	assert.Equal(t, 7001, cfg.SSLStoragePort)
	assert.Equal(t, 9160, cfg.RPCPort)
	assert.Equal(t, ModeProcess, cfg.Mode)
	assert.Equal(t, DefaultMainClass, cfg.Launcher.MainClass)
	assert.Equal(t, 30, cfg.Readiness.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Readiness.Interval)
	assert.NotEmpty(t, cfg.Launcher.Executable)
}

// TestLoadFile verifies that a partial file overrides only what it names.
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
num_nodes: 3
native_port: 19042
mode: embedded
classpath:
  - /opt/cassandra/lib/a.jar
  - /opt/cassandra/lib/b.jar
readiness:
  max_attempts: 5
  interval: 250ms
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.NumNodes)
	assert.Equal(t, 19042, cfg.NativePort)
	assert.Equal(t, ModeEmbedded, cfg.Mode)
	assert.Equal(t, []string{"/opt/cassandra/lib/a.jar", "/opt/cassandra/lib/b.jar"}, cfg.Classpath)
	assert.Equal(t, 5, cfg.Readiness.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Readiness.Interval)

	// untouched keys keep their defaults
	assert.Equal(t, 256, cfg.NumVirtualNodes)
	assert.Equal(t, 7000, cfg.StoragePort)
	assert.Equal(t, "127.0.0.1", cfg.BaseIP)
}

// TestLoadFileErrors covers missing and malformed files.
func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfiguration)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_nodes: [unterminated"), 0o644))
	_, err = LoadFile(path)
	assert.ErrorIs(t, err, ErrConfiguration)
}

// TestGetJSON verifies decoding and status handling of the info client.
func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"address": "127.0.0.1"})
	}))
	defer srv.Close()

	var out struct {
		Address string `json:"address"`
	}
	require.NoError(t, GetJSON(context.Background(), srv.URL+"/info", &out))
	assert.Equal(t, "127.0.0.1", out.Address)

	err := GetJSON(context.Background(), srv.URL+"/missing", &out)
	assert.Error(t, err)
}
