// Package vector provides vector index implementations for similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's dimension does not match
// the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index defines vector storage and similarity search over chunk IDs.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	// Clear drops all vectors. Used when rebuilding after source removal.
	Clear(ctx context.Context) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single vector search hit (ID is the chunk ID).
type Result struct {
	ID    string
	Score float64 // Cosine similarity for normalized vectors (0-1)
}
