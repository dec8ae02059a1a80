package cluster

import "errors"

// Sentinel errors for each failure class. Errors returned by this module wrap
// exactly one of them.
var (
	// ErrConfiguration is returned for malformed input, before any directory
	// or process is touched.
	ErrConfiguration = errors.New("configuration error")

	// ErrProvisioning is returned when a directory or file under the cluster
	// root cannot be deleted, created or written.
	ErrProvisioning = errors.New("provisioning error")

	// ErrStaleEnvironment is returned when the seed addresses already answer
	// before any node was started.
	ErrStaleEnvironment = errors.New("stale environment")

	// ErrNodeDied is returned when a node exits before the cluster became
	// reachable.
	ErrNodeDied = errors.New("node died during startup")

	// ErrTimedOut is returned when every node stayed alive but the cluster
	// never became reachable within the retry budget.
	ErrTimedOut = errors.New("timed out waiting for cluster")

	// ErrUsage is returned for calls that are illegal in the current state,
	// such as starting a cluster that is already running.
	ErrUsage = errors.New("usage error")
)
