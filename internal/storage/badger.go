package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// BadgerStore persists a node's data with BadgerDB. The LSM tree lives in the
// node's data directory and the value log in its commit log directory, so
// both provisioned directories are actually written to.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a store rooted at dataDir with its value log
// in valueDir. An empty valueDir keeps the value log next to the tree.
func OpenBadger(dataDir, valueDir string, log *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dataDir)
	if valueDir != "" {
		opts = opts.WithValueDir(valueDir)
	}
	opts = opts.WithLogger(badgerLogger{log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dataDir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Get retrieves a value by key
func (b *BadgerStore) Get(key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) || errors.Is(err, badger.ErrEmptyKey) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key.
func (b *BadgerStore) Put(key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *BadgerStore) Delete(key string) error {
	if key == "" {
		return nil
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns all keys in ascending order.
func (b *BadgerStore) List() ([]string, error) {
	keys := []string{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Stats counts keys and value bytes.
func (b *BadgerStore) Stats() (StoreStats, error) {
	var stats StoreStats
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			stats.Keys++
			stats.Bytes += int(it.Item().ValueSize())
		}
		return nil
	})
	if err != nil {
		return StoreStats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

// Close flushes and closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's own logging through logrus, demoting its
// chatty INFO lines to debug.
type badgerLogger struct {
	log *logrus.Entry
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.log.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.log.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.log.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.log.Tracef(format, args...) }
