// Package storage holds the key-value stores behind embedded nodes.
//
// Store is the common interface. MemoryStore keeps everything in a map and
// is used by tests and by nodes that need no persistence. BadgerStore keeps
// the data on disk, split over the node's data directory (LSM tree) and its
// commit log directory (value log), so a provisioned node layout is exercised
// the same way a real data store would use it.
//
// All implementations are safe for concurrent use, copy values on the way in
// and out, and return ErrKeyNotFound for missing keys:
//
//	store, err := storage.OpenBadger(id.DataDir, id.CommitLogDir, log)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	_ = store.Put("greeting", []byte("hello"))
//	value, err := store.Get("greeting")
package storage
