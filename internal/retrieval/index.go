// Package retrieval maps chunks to embeddings and answers nearest-neighbour
// queries over them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// ErrNoIndex means no index has been built yet.
var ErrNoIndex = errors.New("no retrieval index has been built")

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// FlatIndex is an exact nearest-neighbour index using squared L2 distance.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dim returns the vector dimension.
func (f *FlatIndex) Dim() int { return f.dim }

// Len returns the number of indexed vectors.
func (f *FlatIndex) Len() int { return len(f.vectors) }

// Add appends vectors. Entry positions follow insertion order.
func (f *FlatIndex) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", i, len(v), f.dim)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Search returns the positions of the k vectors closest to q, nearest first.
// Equal distances keep position order.
func (f *FlatIndex) Search(q []float32, k int) ([]int, error) {
	if len(q) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(q), f.dim)
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	if k <= 0 {
		return nil, nil
	}

	type hit struct {
		pos  int
		dist float32
	}
	hits := make([]hit, len(f.vectors))
	for i, v := range f.vectors {
		var d float32
		for j := range v {
			diff := v[j] - q[j]
			d += diff * diff
		}
		hits[i] = hit{pos: i, dist: d}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].dist < hits[b].dist })

	positions := make([]int, k)
	for i := range positions {
		positions[i] = hits[i].pos
	}
	return positions, nil
}

// Index pairs a FlatIndex with the chunk texts it indexes. Chunks[i] is the
// text of vector position i.
type Index struct {
	Vectors *FlatIndex
	Chunks  []string
}

// Build embeds every chunk and indexes the vectors in chunk order.
func Build(ctx context.Context, embedder Embedder, chunks []string) (*Index, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks to index")
	}
	vectors, err := embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
	}

	flat := NewFlatIndex(len(vectors[0]))
	if err := flat.Add(vectors...); err != nil {
		return nil, err
	}
	return &Index{Vectors: flat, Chunks: append([]string(nil), chunks...)}, nil
}

// Query embeds the question and returns the texts of the k nearest chunks.
func (idx *Index) Query(ctx context.Context, embedder Embedder, question string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vectors, err := embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("got %d embeddings for one query", len(vectors))
	}
	positions, err := idx.Vectors.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(positions))
	for _, p := range positions {
		if p >= 0 && p < len(idx.Chunks) {
			out = append(out, idx.Chunks[p])
		}
	}
	return out, nil
}
