package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenBadger("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func testIndex(t *testing.T, chunks []string, vectors ...[]float32) *Index {
	t.Helper()
	f := NewFlatIndex(len(vectors[0]))
	require.NoError(t, f.Add(vectors...))
	return &Index{Vectors: f, Chunks: chunks}
}

func TestStoreLoadWithoutIndex(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	idx := testIndex(t, []string{"alpha", "beta"}, []float32{0.25, -1.5, 3}, []float32{1e-3, 0, 42})

	require.NoError(t, s.Save(idx))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, idx.Chunks, loaded.Chunks)
	assert.Equal(t, 3, loaded.Vectors.Dim())
	assert.Equal(t, idx.Vectors.vectors, loaded.Vectors.vectors)
}

func TestStoreSaveReplacesPreviousIndex(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testIndex(t, []string{"old one", "old two", "old three"}, []float32{1}, []float32{2}, []float32{3})))
	require.NoError(t, s.Save(testIndex(t, []string{"new"}, []float32{9, 9})))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, loaded.Chunks)
	assert.Equal(t, 2, loaded.Vectors.Dim())

	m, err := s.meta()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.Generation)
}

func TestStoreSaveRejectsMisalignedIndex(t *testing.T) {
	s := newTestStore(t)
	idx := testIndex(t, []string{"only one chunk", "extra"}, []float32{1})
	assert.Error(t, s.Save(idx))

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoIndex)
}
