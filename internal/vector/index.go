// Package vector provides the exact nearest-neighbor index over item embeddings
// and the similarity helpers used by evaluation.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrNotBuilt is returned when searching an index that was never populated or loaded.
	ErrNotBuilt = errors.New("vector index not built")
	// ErrAlreadyBuilt is returned when adding to an index that already holds vectors.
	// The index is append-once; a rebuild creates a new index.
	ErrAlreadyBuilt = errors.New("vector index already built")
	// ErrDimensionMismatch is returned when vector lengths disagree.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrZeroNorm is returned by CosineSimilarity when either vector has zero length.
	ErrZeroNorm = errors.New("zero-norm vector")
	// ErrCorrupt is returned when a persisted index cannot be decoded.
	ErrCorrupt = errors.New("vector index corrupt")
)

// VectorIndex defines exact vector storage and nearest-neighbor search.
type VectorIndex interface {
	Add(ctx context.Context, ids []int64, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	IDs() []int64
	Close() error
}

// VectorResult is a single search hit. Position is the 0-based row in the index
// and is the join key to the catalog metadata; ID is the item id stored alongside
// the vector at build time.
type VectorResult struct {
	Position int
	ID       int64
	Distance float64 // squared Euclidean distance, lower is closer
}
