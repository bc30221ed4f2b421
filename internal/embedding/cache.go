package embedding

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingEmbedder wraps another Embedder with an LRU cache keyed by text.
// Fit invalidates the cache, since fitting changes what a text encodes to.
type CachingEmbedder struct {
	next  Embedder
	size  int
	cache *expirable.LRU[string, []float32]
}

// WithCache wraps e with an LRU cache of the given capacity.
// A capacity <= 0 returns e unchanged.
func WithCache(e Embedder, capacity int) Embedder {
	if capacity <= 0 {
		return e
	}
	return &CachingEmbedder{
		next:  e,
		size:  capacity,
		cache: expirable.NewLRU[string, []float32](capacity, nil, 0),
	}
}

// Embed returns the cached embedding for text, or computes and caches it.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		return cloneVector(cached), nil
	}
	emb, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, cloneVector(emb))
	return emb, nil
}

// EmbedBatch embeds each text through the cache.
func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachingEmbedder) Dimensions() int { return c.next.Dimensions() }

// RequiresFit returns the wrapped embedder's fit requirement.
func (c *CachingEmbedder) RequiresFit() bool { return c.next.RequiresFit() }

// Fit fits the wrapped embedder and drops all cached vectors.
func (c *CachingEmbedder) Fit(ctx context.Context, corpus []string) error {
	if err := c.next.Fit(ctx, corpus); err != nil {
		return err
	}
	c.cache = expirable.NewLRU[string, []float32](c.size, nil, 0)
	return nil
}

// Close closes the wrapped embedder.
func (c *CachingEmbedder) Close() error { return c.next.Close() }

func cloneVector(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
