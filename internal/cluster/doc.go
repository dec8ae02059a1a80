// Package cluster defines the shared vocabulary of a local test cluster:
// the user-supplied configuration, the seed list every node agrees on, the
// per-node identity with its directory layout, and the error taxonomy used
// by the orchestration layers above it.
//
// # Overview
//
// A cluster is N nodes of the data store running on a single host. Each node
// listens on its own loopback address, derived from a base IP by adding the
// node index to the last octet:
//
//	base 127.0.0.1, 3 nodes
//
//	node-0 -> 127.0.0.1
//	node-1 -> 127.0.0.2
//	node-2 -> 127.0.0.3
//
// All nodes share the same port numbers; they are told apart by address only.
// The seed list is the full address list, in index order, and every node's
// generated configuration embeds the same list (including its own address).
//
// # Directory Layout
//
//	{root}/
//	├── .minicass            ownership marker written by the orchestrator
//	├── node-0/
//	│   ├── conf/            cassandra.yaml, log4j-server.properties
//	│   ├── data/
//	│   ├── commitlog/
//	│   └── saved_caches/
//	└── node-1/ ...
//
// # Errors
//
// Failures are reported by wrapping one of the sentinel errors declared in
// errors.go, so callers can classify them with errors.Is:
//
//	if errors.Is(err, cluster.ErrStaleEnvironment) {
//	    // something is already answering on the seed addresses
//	}
//
// # See Also
//
// Related packages:
//   - internal/nodeconf: renders one node's configuration document
//   - internal/node: materializes and runs one node
//   - internal/orchestrator: sequences the whole cluster
package cluster
