package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/oboeru/internal/config"
)

func TestFrequencyEmbedder_NotFitted(t *testing.T) {
	e := NewFrequencyEmbedder(64)

	if !e.RequiresFit() {
		t.Fatal("frequency embedder should require fit")
	}
	_, err := e.Embed(context.Background(), "hello world")
	if !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
}

func TestFrequencyEmbedder_FitAndEmbed(t *testing.T) {
	e := NewFrequencyEmbedder(64)
	corpus := []string{
		"the quick brown fox",
		"jumps over the lazy dog",
		"pack my box with five dozen liquor jugs",
	}
	if err := e.Fit(context.Background(), corpus); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	vec, err := e.Embed(context.Background(), "quick brown fox")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(vec))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(norm))
	}

	// Same text must encode to the same vector.
	vec2, err := e.Embed(context.Background(), "quick brown fox")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range vec {
		if vec[i] != vec2[i] {
			t.Fatal("embedding is not deterministic")
		}
	}
}

func TestFrequencyEmbedder_RefitReplaces(t *testing.T) {
	e := NewFrequencyEmbedder(32)
	ctx := context.Background()

	if err := e.Fit(ctx, []string{"alpha beta"}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := e.Fit(ctx, []string{"gamma delta", "epsilon zeta", "eta theta"}); err != nil {
		t.Fatalf("refit failed: %v", err)
	}
	if e.docCount != 3 {
		t.Errorf("expected docCount 3 after refit, got %d", e.docCount)
	}
}

func TestFeatureEmbedder(t *testing.T) {
	e := NewFeatureEmbedder()
	ctx := context.Background()

	if e.RequiresFit() {
		t.Fatal("feature embedder should not require fit")
	}
	if e.Dimensions() != FeatureDimensions {
		t.Fatalf("expected %d dimensions, got %d", FeatureDimensions, e.Dimensions())
	}

	empty, err := e.Embed(ctx, "")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i, v := range empty {
		if v != 0 {
			t.Fatalf("expected zero vector for empty text, got %f at %d", v, i)
		}
	}

	vec, err := e.Embed(ctx, "Hello World 42")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(norm))
	}
}

// countingEmbedder counts Embed calls so cache hits are observable.
type countingEmbedder struct {
	*MockEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.MockEmbedder.Embed(ctx, text)
}

func TestCachingEmbedder(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(16)}
	cached := WithCache(inner, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "repeated query")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := cached.Embed(ctx, "repeated query")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", inner.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached vector differs from computed vector")
		}
	}

	// Fit drops the cache.
	if err := cached.Fit(ctx, []string{"a"}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := cached.Embed(ctx, "repeated query"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected cache invalidation after fit, calls=%d", inner.calls)
	}
}

func TestWithCache_ZeroCapacity(t *testing.T) {
	inner := NewMockEmbedder(8)
	if got := WithCache(inner, 0); got != Embedder(inner) {
		t.Fatal("zero capacity should return the embedder unchanged")
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()

	a, err := e.Embed(ctx, "stable text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := e.Embed(ctx, "stable text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("mock embedding is not deterministic")
		}
	}
}

func TestNewEmbedder_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		wantDims int
		wantErr  bool
	}{
		{"frequency", "frequency", 48, false},
		{"default is frequency", "", 48, false},
		{"feature", "feature", FeatureDimensions, false},
		{"unknown", "word2vec", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.EmbeddingConfig{
				Backend:    tt.backend,
				Dimensions: 48,
				CacheSize:  100,
			}
			e, err := NewEmbedder(cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEmbedder failed: %v", err)
			}
			if e.Dimensions() != tt.wantDims {
				t.Errorf("expected %d dimensions, got %d", tt.wantDims, e.Dimensions())
			}
		})
	}
}
