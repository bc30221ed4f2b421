package embedding

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/hyperjump/oboeru/pkg/utils"
)

// FrequencyEmbedder is a hashed bag-of-words backend with IDF weighting.
// It needs no model files, but it must be fit on a corpus first so that
// document frequencies (and thus IDF weights) reflect a shared vocabulary.
// Refitting on the full accumulated corpus keeps vectors comparable across
// ingests.
type FrequencyEmbedder struct {
	dimensions int
	mu         sync.RWMutex
	fitted     bool
	docCount   int
	// docFreq counts, per hash bucket, how many fit documents contained it.
	docFreq []int
}

// NewFrequencyEmbedder creates a frequency embedder with the given dimension.
func NewFrequencyEmbedder(dimensions int) *FrequencyEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &FrequencyEmbedder{
		dimensions: dimensions,
		docFreq:    make([]int, dimensions),
	}
}

// RequiresFit reports that this backend must be fit before encoding.
func (e *FrequencyEmbedder) RequiresFit() bool { return true }

// Fit builds the document-frequency table from corpus. It replaces any
// previous fit, so callers should pass the entire accumulated corpus.
func (e *FrequencyEmbedder) Fit(ctx context.Context, corpus []string) error {
	freq := make([]int, e.dimensions)
	for _, text := range corpus {
		seen := make(map[int]bool)
		for _, tok := range tokenize(text) {
			seen[HashString(tok)%e.dimensions] = true
		}
		for bucket := range seen {
			freq[bucket]++
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.docFreq = freq
	e.docCount = len(corpus)
	e.fitted = true
	return nil
}

// Embed returns the IDF-weighted term-frequency vector for text, L2-normalized.
// Returns ErrNotFitted before the first Fit.
func (e *FrequencyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.fitted {
		return nil, ErrNotFitted
	}

	vec := make([]float32, e.dimensions)
	for _, tok := range tokenize(text) {
		bucket := HashString(tok) % e.dimensions
		vec[bucket] += float32(e.idf(bucket))
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// idf returns a smoothed inverse-document-frequency weight for a bucket.
// Callers must hold at least a read lock.
func (e *FrequencyEmbedder) idf(bucket int) float64 {
	return math.Log(float64(e.docCount+1)/float64(e.docFreq[bucket]+1)) + 1.0
}

// EmbedBatch calls Embed for each text.
func (e *FrequencyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *FrequencyEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op for FrequencyEmbedder.
func (e *FrequencyEmbedder) Close() error { return nil }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
}
