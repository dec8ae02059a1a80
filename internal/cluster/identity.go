package cluster

import (
	"fmt"
	"path/filepath"
)

// NodeIdentity is everything that distinguishes one node from its siblings.
// It is created once per node at startup and never modified.
type NodeIdentity struct {
	Index   int    // 0-based position in the seed list
	Address string // listen and client-facing address

	RootDir        string // {clusterRoot}/node-{Index}
	ConfDir        string
	DataDir        string
	CommitLogDir   string
	SavedCachesDir string
}

// NewIdentity lays out the directories of node index under clusterRoot.
// clusterRoot should already be absolute; the generated configuration
// embeds these paths verbatim.
func NewIdentity(clusterRoot string, index int, address string) NodeIdentity {
	root := filepath.Join(clusterRoot, fmt.Sprintf("node-%d", index))
	return NodeIdentity{
		Index:          index,
		Address:        address,
		RootDir:        root,
		ConfDir:        filepath.Join(root, "conf"),
		DataDir:        filepath.Join(root, "data"),
		CommitLogDir:   filepath.Join(root, "commitlog"),
		SavedCachesDir: filepath.Join(root, "saved_caches"),
	}
}

// Name returns the node's directory name, e.g. "node-2".
func (id NodeIdentity) Name() string {
	return filepath.Base(id.RootDir)
}

// Dirs returns the subdirectories that must exist before the node starts.
func (id NodeIdentity) Dirs() []string {
	return []string{id.ConfDir, id.DataDir, id.CommitLogDir, id.SavedCachesDir}
}

func (id NodeIdentity) String() string {
	return fmt.Sprintf("%s (%s)", id.Name(), id.Address)
}
