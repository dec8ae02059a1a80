// Package minicass runs a local multi-node cluster of the data store for
// integration tests.
//
// A test suite creates one Handle, starts a cluster with it before the
// tests run and stops it afterwards:
//
//	h := minicass.NewHandle()
//
//	cfg := minicass.DefaultConfig()
//	cfg.NumNodes = 3
//	cfg.RootDir = "target/cassandra"
//	cfg.Classpath = jars
//
//	if err := h.Start(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Stop(ctx)
//
// Start returns once a client can connect to the cluster's native port, or
// with an error wrapping one of ErrConfiguration, ErrProvisioning,
// ErrStaleEnvironment, ErrNodeDied or ErrTimedOut. Nodes run either as
// child processes (ModeProcess, the default) or inside the calling process
// (ModeEmbedded).
package minicass
