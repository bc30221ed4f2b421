package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/hyperjump/oboeru/pkg/utils"
)

// FeatureDimensions is the fixed output width of the FeatureEmbedder.
const FeatureDimensions = 6

// FeatureEmbedder is the last-resort fallback backend: a handful of cheap
// surface features (length, word count, vowel count, ...). Not semantically
// rich, but it keeps similarity-based retrieval functional when heavier
// backends fail to initialize. It never errors; an empty string yields the
// zero vector.
type FeatureEmbedder struct{}

// NewFeatureEmbedder returns the fallback feature embedder.
func NewFeatureEmbedder() *FeatureEmbedder { return &FeatureEmbedder{} }

// Embed returns a normalized feature vector for text. Never fails.
func (e *FeatureEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, FeatureDimensions)
	if text == "" {
		return vec, nil
	}

	var vowels, digits, upper float32
	for _, r := range text {
		switch {
		case strings.ContainsRune("aeiouAEIOU", r):
			vowels++
		case unicode.IsDigit(r):
			digits++
		}
		if unicode.IsUpper(r) {
			upper++
		}
	}
	words := strings.Fields(text)
	avgWordLen := float32(0)
	if len(words) > 0 {
		avgWordLen = float32(len(text)) / float32(len(words))
	}

	vec[0] = float32(len(text))
	vec[1] = float32(len(words))
	vec[2] = vowels
	vec[3] = digits
	vec[4] = upper
	vec[5] = avgWordLen
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *FeatureEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, _ := e.Embed(ctx, text)
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the fixed feature dimension.
func (e *FeatureEmbedder) Dimensions() int { return FeatureDimensions }

// RequiresFit reports that no fitting is needed.
func (e *FeatureEmbedder) RequiresFit() bool { return false }

// Fit is a no-op.
func (e *FeatureEmbedder) Fit(ctx context.Context, corpus []string) error { return nil }

// Close is a no-op.
func (e *FeatureEmbedder) Close() error { return nil }
