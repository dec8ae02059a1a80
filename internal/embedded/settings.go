package embedded

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/minicass/internal/nodeconf"
)

// Settings is the subset of a node configuration file the service acts on.
// Unknown keys are ignored.
type Settings struct {
	ClusterName    string                  `yaml:"cluster_name"`
	NumTokens      int                     `yaml:"num_tokens"`
	ListenAddress  string                  `yaml:"listen_address"`
	RPCAddress     string                  `yaml:"rpc_address"`
	NativePort     int                     `yaml:"native_transport_port"`
	StoragePort    int                     `yaml:"storage_port"`
	DataDirs       []string                `yaml:"data_file_directories"`
	CommitLogDir   string                  `yaml:"commitlog_directory"`
	SavedCachesDir string                  `yaml:"saved_caches_directory"`
	SeedProvider   []nodeconf.SeedProvider `yaml:"seed_provider"`
}

// LoadSettings reads the node configuration file at path.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read node config: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse node config %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return s, fmt.Errorf("node config %s: %w", path, err)
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if s.NativePort < 1 || s.NativePort > 65535 {
		return fmt.Errorf("native_transport_port %d out of range", s.NativePort)
	}
	if s.StoragePort < 0 || s.StoragePort > 65535 {
		return fmt.Errorf("storage_port %d out of range", s.StoragePort)
	}
	return nil
}

// Seeds returns the seed addresses of the first seed provider.
func (s Settings) Seeds() []string {
	for _, p := range s.SeedProvider {
		if joined := p.Seeds(); joined != "" {
			return strings.Split(joined, ",")
		}
	}
	return nil
}

// DataDir returns the first data directory, or "" when none is configured.
func (s Settings) DataDir() string {
	if len(s.DataDirs) == 0 {
		return ""
	}
	return s.DataDirs[0]
}
