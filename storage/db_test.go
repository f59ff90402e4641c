package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Database {
	t.Helper()
	out := make(map[string]Database)
	for _, name := range []string{BackendMemory, BackendLevelDB, BackendPebble, BackendBolt} {
		db, err := Open(name, t.TempDir())
		require.NoError(t, err, name)
		t.Cleanup(db.Close)
		out[name] = db
	}
	return out
}

func TestDatabaseBasicOperations(t *testing.T) {
	for name, db := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Put([]byte("k"), []byte("v1")))
			got, err := db.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, db.Put([]byte("k"), []byte("v2")))
			got, err = db.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, db.Delete([]byte("k")))
			_, err = db.Get([]byte("k"))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBatchAppliesAtomically(t *testing.T) {
	for name, db := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("stale"), []byte("x")))

			batch := db.NewBatch()
			require.NoError(t, batch.Put([]byte("a"), []byte("1")))
			require.NoError(t, batch.Put([]byte("b"), []byte("2")))
			require.NoError(t, batch.Delete([]byte("stale")))
			assert.Equal(t, 3, batch.Len())

			_, err := db.Get([]byte("a"))
			assert.ErrorIs(t, err, ErrNotFound, "batch must be invisible before Write")

			require.NoError(t, batch.Write())

			a, err := db.Get([]byte("a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), a)
			b, err := db.Get([]byte("b"))
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), b)
			_, err = db.Get([]byte("stale"))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("rocksdb", t.TempDir())
	require.Error(t, err)

	_, err = Open(BackendPebble, "")
	require.Error(t, err)
}

func TestMemDBReturnsCopies(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestPebbleCloseReleasesCacheOnce(t *testing.T) {
	db, err := NewPebbleDB(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, db.cache)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	db.Close()
	db.Close()
	_, err = db.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Put([]byte("k"), nil), ErrClosed)
}
