package cluster

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects how a node is executed.
type Mode string

const (
	// ModeProcess runs every node as a child operating-system process.
	ModeProcess Mode = "process"
	// ModeEmbedded runs every node as an in-process service.
	ModeEmbedded Mode = "embedded"
)

// DefaultMainClass is the entry point launched for process-mode nodes.
const DefaultMainClass = "org.apache.cassandra.service.CassandraDaemon"

// Config is the immutable description of a cluster to run.
// The zero value is not usable; start from DefaultConfig.
type Config struct {
	NumNodes        int      `yaml:"num_nodes"`
	NumVirtualNodes int      `yaml:"num_vnodes"`
	BaseIP          string   `yaml:"base_ip"`
	NativePort      int      `yaml:"native_port"`
	StoragePort     int      `yaml:"storage_port"`
	SSLStoragePort  int      `yaml:"ssl_storage_port"`
	RPCPort         int      `yaml:"rpc_port"`
	RootDir         string   `yaml:"root_dir"`
	Classpath       []string `yaml:"classpath"`

	// Mode picks the node backend. Empty means ModeProcess.
	Mode Mode `yaml:"mode"`

	// Launcher describes the child command line for process-mode nodes.
	Launcher Launcher `yaml:"launcher"`

	// ClusterName is embedded in every node configuration. A name is
	// generated at startup when empty.
	ClusterName string `yaml:"cluster_name"`

	// Template is an optional path to a baseline configuration document used
	// instead of the built-in one.
	Template string `yaml:"template"`

	Readiness Readiness `yaml:"readiness"`

	// Skip turns the whole orchestration into a no-op.
	Skip bool `yaml:"skip"`
}

// Launcher configures the command line of process-mode nodes:
//
//	<Executable> <JVMOptions...> -cp <classpath> <MainClass>
type Launcher struct {
	Executable string   `yaml:"executable"`
	MainClass  string   `yaml:"main_class"`
	JVMOptions []string `yaml:"jvm_options"`
}

// Readiness bounds the post-start wait for the cluster to answer.
type Readiness struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

// DefaultConfig returns a single-node cluster on 127.0.0.1 with the data
// store's stock ports, waiting up to five minutes for it to come up.
func DefaultConfig() Config {
	return Config{
		NumNodes:        1,
		NumVirtualNodes: 256,
		BaseIP:          "127.0.0.1",
		NativePort:      9042,
		StoragePort:     7000,
		SSLStoragePort:  7001,
		RPCPort:         9160,
		RootDir:         filepath.Join("target", "cassandra"),
		Mode:            ModeProcess,
		Launcher: Launcher{
			Executable: defaultJava(),
			MainClass:  DefaultMainClass,
		},
		Readiness: Readiness{
			MaxAttempts: 30,
			Interval:    10 * time.Second,
		},
	}
}

// defaultJava resolves the java executable from JAVA_HOME, falling back to
// whatever "java" is on PATH.
func defaultJava() string {
	if home := os.Getenv("JAVA_HOME"); home != "" {
		return filepath.Join(home, "bin", "java")
	}
	return "java"
}

// LoadFile reads a YAML cluster description and applies it on top of
// DefaultConfig, so a file only needs the keys it wants to change.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	return cfg, nil
}

// Validate reports the first problem with the configuration, wrapped in
// ErrConfiguration.
func (c Config) Validate() error {
	if c.NumNodes < 1 {
		return fmt.Errorf("%w: node count must be at least 1, got %d", ErrConfiguration, c.NumNodes)
	}
	if c.NumVirtualNodes < 1 {
		return fmt.Errorf("%w: virtual node count must be at least 1, got %d", ErrConfiguration, c.NumVirtualNodes)
	}
	for name, port := range map[string]int{
		"native":      c.NativePort,
		"storage":     c.StoragePort,
		"ssl storage": c.SSLStoragePort,
		"rpc":         c.RPCPort,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%w: %s port %d out of range", ErrConfiguration, name, port)
		}
	}
	if c.RootDir == "" {
		return fmt.Errorf("%w: root directory is required", ErrConfiguration)
	}
	switch c.Mode {
	case "", ModeProcess, ModeEmbedded:
	default:
		return fmt.Errorf("%w: unknown node mode %q", ErrConfiguration, c.Mode)
	}
	if c.Readiness.MaxAttempts < 1 {
		return fmt.Errorf("%w: readiness attempts must be at least 1", ErrConfiguration)
	}
	if _, err := Seeds(c); err != nil {
		return err
	}
	return nil
}
