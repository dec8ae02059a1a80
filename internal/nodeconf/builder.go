// Package nodeconf renders the configuration files of a single node: the
// data store's YAML document, merged over a baseline template, and the
// log-routing properties file.
package nodeconf

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/dreamware/minicass/internal/cluster"
)

// File names written to each node's conf directory.
const (
	ConfigFileName    = "cassandra.yaml"
	LogConfigFileName = "log4j-server.properties"
)

// SeedProviderClass is the seed provider every node is configured with.
const SeedProviderClass = "org.apache.cassandra.locator.SimpleSeedProvider"

// Keys the builder overwrites. Every other baseline key passes through.
const (
	KeyDataDirs       = "data_file_directories"
	KeyCommitLogDir   = "commitlog_directory"
	KeySavedCachesDir = "saved_caches_directory"
	KeyListenAddress  = "listen_address"
	KeyRPCAddress     = "rpc_address"
	KeyNativePort     = "native_transport_port"
	KeyStoragePort    = "storage_port"
	KeySSLStoragePort = "ssl_storage_port"
	KeyRPCPort        = "rpc_port"
	KeyNumTokens      = "num_tokens"
	KeyClusterName    = "cluster_name"
	KeySeedProvider   = "seed_provider"
)

//go:embed cassandra.yaml
var defaultBaseline []byte

// SeedProvider is the value stored under seed_provider.
type SeedProvider struct {
	ClassName  string              `yaml:"class_name"`
	Parameters []map[string]string `yaml:"parameters"`
}

// Seeds returns the comma-joined seed parameter, or "" when absent.
func (p SeedProvider) Seeds() string {
	for _, params := range p.Parameters {
		if s, ok := params["seeds"]; ok {
			return s
		}
	}
	return ""
}

// DefaultBaseline returns a fresh copy of the built-in baseline template.
func DefaultBaseline() *Document {
	doc, err := Parse(defaultBaseline)
	if err != nil {
		panic(fmt.Sprintf("nodeconf: built-in baseline is invalid: %v", err))
	}
	return doc
}

// LoadBaseline reads the baseline template at path, or the built-in one
// when path is empty.
func LoadBaseline(path string) (*Document, error) {
	if path == "" {
		return DefaultBaseline(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read template %s: %v", cluster.ErrConfiguration, path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: template %s: %v", cluster.ErrConfiguration, path, err)
	}
	return doc, nil
}

type setting struct {
	key   string
	value any
}

// Build merges the node-specific settings over baseline and returns the
// result. baseline is not modified. Keys set here always win; keys missing
// from baseline are added.
func Build(baseline *Document, id cluster.NodeIdentity, seeds []string, cfg cluster.Config) (*Document, error) {
	doc := baseline.Clone()

	settings := []setting{
		{KeyDataDirs, []string{id.DataDir}},
		{KeyCommitLogDir, id.CommitLogDir},
		{KeySavedCachesDir, id.SavedCachesDir},
		{KeyListenAddress, id.Address},
		{KeyRPCAddress, id.Address},
		{KeyNativePort, cfg.NativePort},
		{KeyStoragePort, cfg.StoragePort},
		{KeySSLStoragePort, cfg.SSLStoragePort},
		{KeyRPCPort, cfg.RPCPort},
		{KeyNumTokens, cfg.NumVirtualNodes},
	}
	if cfg.ClusterName != "" {
		settings = append(settings, setting{KeyClusterName, cfg.ClusterName})
	}
	for _, s := range settings {
		if err := doc.Set(s.key, s.value); err != nil {
			return nil, err
		}
	}

	if len(seeds) > 0 {
		provider := []SeedProvider{{
			ClassName:  SeedProviderClass,
			Parameters: []map[string]string{{"seeds": strings.Join(seeds, ",")}},
		}}
		if err := doc.Set(KeySeedProvider, provider); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
