package minicass

import "github.com/dreamware/minicass/internal/cluster"

// Config describes the cluster to run. Start from DefaultConfig.
type Config = cluster.Config

// NodeIdentity is the address and directory layout of one node.
type NodeIdentity = cluster.NodeIdentity

// Mode selects how nodes are executed.
type Mode = cluster.Mode

const (
	ModeProcess  = cluster.ModeProcess
	ModeEmbedded = cluster.ModeEmbedded
)

// Errors returned by Start; test with errors.Is.
var (
	ErrConfiguration    = cluster.ErrConfiguration
	ErrProvisioning     = cluster.ErrProvisioning
	ErrStaleEnvironment = cluster.ErrStaleEnvironment
	ErrNodeDied         = cluster.ErrNodeDied
	ErrTimedOut         = cluster.ErrTimedOut
	ErrUsage            = cluster.ErrUsage
)

// DefaultConfig returns a single-node cluster on 127.0.0.1 with the stock
// ports.
func DefaultConfig() Config {
	return cluster.DefaultConfig()
}

// LoadConfig reads a YAML cluster description over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	return cluster.LoadFile(path)
}

// Seeds returns the addresses the nodes of cfg will use.
func Seeds(cfg Config) ([]string, error) {
	return cluster.Seeds(cfg)
}
