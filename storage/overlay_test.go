package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayReadYourWrites(t *testing.T) {
	for name, db := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("base"), []byte("committed")))

			ov := NewOverlay(db)
			got, err := ov.Get([]byte("base"))
			require.NoError(t, err)
			assert.Equal(t, []byte("committed"), got)

			require.NoError(t, ov.Put([]byte("base"), []byte("pending")))
			require.NoError(t, ov.Put([]byte("fresh"), []byte("new")))

			got, err = ov.Get([]byte("base"))
			require.NoError(t, err)
			assert.Equal(t, []byte("pending"), got)

			got, err = db.Get([]byte("base"))
			require.NoError(t, err)
			assert.Equal(t, []byte("committed"), got, "base must not see pending writes")

			require.NoError(t, ov.Delete([]byte("fresh")))
			_, err = ov.Get([]byte("fresh"))
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, ov.Put([]byte("fresh"), []byte("again")))
			got, err = ov.Get([]byte("fresh"))
			require.NoError(t, err)
			assert.Equal(t, []byte("again"), got)
		})
	}
}

func TestOverlayCommit(t *testing.T) {
	for name, db := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("gone"), []byte("x")))

			ov := NewOverlay(db)
			require.NoError(t, ov.Put([]byte("a"), []byte("1")))
			require.NoError(t, ov.Delete([]byte("gone")))
			assert.Equal(t, 2, ov.Pending())
			require.NoError(t, ov.Commit())

			got, err := db.Get([]byte("a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), got)
			_, err = db.Get([]byte("gone"))
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, ov.Put([]byte("late"), nil), ErrOverlayClosed)
			assert.ErrorIs(t, ov.Commit(), ErrOverlayClosed)
		})
	}
}

func TestOverlayDiscard(t *testing.T) {
	db := NewMemDB()
	ov := NewOverlay(db)
	require.NoError(t, ov.Put([]byte("a"), []byte("1")))
	ov.Discard()

	assert.Equal(t, 0, db.Len())
	_, err := ov.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrOverlayClosed)
}

func TestOverlayBatchLandsInJournal(t *testing.T) {
	db := NewMemDB()
	ov := NewOverlay(db)

	batch := ov.NewBatch()
	require.NoError(t, batch.Put([]byte("k"), []byte("v")))
	require.NoError(t, batch.Write())

	got, err := ov.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 0, db.Len())
}
