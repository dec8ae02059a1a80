package storage

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BadgerStore)(nil)
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// stores returns a fresh instance of every implementation.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	b, err := OpenBadger(t.TempDir(), t.TempDir(), quietLog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": b,
	}
}

// TestStore runs the behaviour every Store implementation must share.
func TestStore(t *testing.T) {
	for name, store := range stores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Run("new store is empty", func(t *testing.T) {
				keys, err := store.List()
				require.NoError(t, err)
				assert.Empty(t, keys)

				_, err = store.Get("nonexistent")
				assert.ErrorIs(t, err, ErrKeyNotFound)
			})

			t.Run("put get overwrite", func(t *testing.T) {
				require.NoError(t, store.Put("key1", []byte("value1")))
				v, err := store.Get("key1")
				require.NoError(t, err)
				assert.Equal(t, []byte("value1"), v)

				require.NoError(t, store.Put("key1", []byte("value2")))
				v, err = store.Get("key1")
				require.NoError(t, err)
				assert.Equal(t, []byte("value2"), v)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				require.NoError(t, store.Put("gone", []byte("x")))
				require.NoError(t, store.Delete("gone"))
				require.NoError(t, store.Delete("gone"))
				_, err := store.Get("gone")
				assert.ErrorIs(t, err, ErrKeyNotFound)
			})

			t.Run("empty key rejected", func(t *testing.T) {
				assert.ErrorIs(t, store.Put("", []byte("x")), ErrInvalidKey)
			})

			t.Run("values are copied", func(t *testing.T) {
				in := []byte("original")
				require.NoError(t, store.Put("copy", in))
				in[0] = 'X'

				out, err := store.Get("copy")
				require.NoError(t, err)
				assert.Equal(t, []byte("original"), out)

				out[0] = 'Y'
				again, err := store.Get("copy")
				require.NoError(t, err)
				assert.Equal(t, []byte("original"), again)
			})

			t.Run("list sorted and stats", func(t *testing.T) {
				keys, err := store.List()
				require.NoError(t, err)
				assert.Equal(t, []string{"copy", "key1"}, keys)

				stats, err := store.Stats()
				require.NoError(t, err)
				assert.Equal(t, 2, stats.Keys)
				assert.Equal(t, len("original")+len("value2"), stats.Bytes)
			})
		})
	}
}

func TestStoreConcurrency(t *testing.T) {
	for name, store := range stores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			const workers, perWorker = 8, 25

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						key := fmt.Sprintf("w%d-k%d", w, i)
						assert.NoError(t, store.Put(key, []byte(key)))
						v, err := store.Get(key)
						assert.NoError(t, err)
						assert.Equal(t, key, string(v))
					}
				}(w)
			}
			wg.Wait()

			stats, err := store.Stats()
			require.NoError(t, err)
			assert.Equal(t, workers*perWorker, stats.Keys)
		})
	}
}

// TestBadgerPersists checks that data survives a close and reopen of the
// same directories.
func TestBadgerPersists(t *testing.T) {
	dataDir, logDir := t.TempDir(), t.TempDir()

	b, err := OpenBadger(dataDir, logDir, quietLog())
	require.NoError(t, err)
	require.NoError(t, b.Put("durable", []byte("yes")))
	require.NoError(t, b.Close())

	b, err = OpenBadger(dataDir, logDir, quietLog())
	require.NoError(t, err)
	defer b.Close()

	v, err := b.Get("durable")
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), v)
}

func TestMemoryStoreClose(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Put("a", []byte("1")))
	require.NoError(t, m.Close())

	keys, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
