package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps a text to a one-hot vector over a fixed vocabulary.
type keywordEmbedder struct {
	vocab []string
	calls int
	err   error
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(e.vocab))
		lower := strings.ToLower(text)
		for j, word := range e.vocab {
			if strings.Contains(lower, word) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func TestFlatIndexSearch(t *testing.T) {
	f := NewFlatIndex(2)
	require.NoError(t, f.Add([]float32{0, 0}, []float32{5, 5}, []float32{1, 0}, []float32{0, 1}))

	testCases := []struct {
		name     string
		query    []float32
		k        int
		expected []int
	}{
		{name: "Nearest first", query: []float32{0.9, 0}, k: 2, expected: []int{2, 0}},
		{name: "Ties keep insertion order", query: []float32{0.5, 0.5}, k: 3, expected: []int{0, 2, 3}},
		{name: "K larger than index", query: []float32{5, 5}, k: 10, expected: []int{1, 2, 3, 0}},
		{name: "Zero k", query: []float32{0, 0}, k: 0, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.Search(tc.query, tc.k)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	f := NewFlatIndex(3)
	assert.Error(t, f.Add([]float32{1, 2}))
	assert.Equal(t, 0, f.Len())

	require.NoError(t, f.Add([]float32{1, 2, 3}))
	_, err := f.Search([]float32{1}, 1)
	assert.Error(t, err)
}

func TestBuildAndQuery(t *testing.T) {
	emb := &keywordEmbedder{vocab: []string{"photosynthesis", "mitochondria", "osmosis"}}
	chunks := []string{
		"Photosynthesis converts light energy into chemical energy in plants.",
		"Mitochondria are the site of cellular respiration.",
		"Osmosis moves water across a semi-permeable membrane.",
	}

	idx, err := Build(context.Background(), emb, chunks)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Vectors.Len())
	assert.Equal(t, chunks, idx.Chunks)

	got, err := idx.Query(context.Background(), emb, "What do mitochondria do?", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{chunks[1]}, got)

	got, err = idx.Query(context.Background(), emb, "Explain osmosis", 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultTopK)
	assert.Equal(t, chunks[2], got[0])
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(context.Background(), &keywordEmbedder{vocab: []string{"a"}}, nil)
	assert.Error(t, err)

	boom := errors.New("quota exceeded")
	_, err = Build(context.Background(), &keywordEmbedder{err: boom}, []string{"text"})
	assert.ErrorIs(t, err, boom)
}
