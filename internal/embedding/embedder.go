// Package embedding provides pluggable text embedding backends with graceful fallback.
package embedding

import (
	"context"
	"errors"
)

// ErrNotFitted is returned when a backend that requires fitting is asked
// to embed before Fit has been called.
var ErrNotFitted = errors.New("embedding backend requires fit before encode")

// Embedder produces fixed-dimension, L2-normalized vector embeddings for text.
//
// Backends that report RequiresFit() == true must be fit on a representative
// corpus before the first Embed call; Embed returns ErrNotFitted otherwise.
// For model-based backends Fit is a no-op.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	RequiresFit() bool
	Fit(ctx context.Context, corpus []string) error
	Close() error
}

// HashString returns a small non-cryptographic hash of s (FNV-1a variant),
// used for deterministic token bucketing.
func HashString(s string) int {
	h := 2166136261
	for i := 0; i < len(s); i++ {
		h ^= int(s[i])
		h *= 16777619
		h &= 0x7fffffff
	}
	return h
}
