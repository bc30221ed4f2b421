package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/config"
)

// Backend names accepted in configuration.
const (
	BackendONNX      = "onnx"
	BackendFrequency = "frequency"
	BackendFeature   = "feature"
)

// NewEmbedder builds the configured backend, falling through the enumerated
// order onnx -> frequency -> feature when a preferred backend fails to
// initialize. The returned embedder is wrapped with an LRU cache. Selection
// happens once at construction from explicit configuration; there is no
// environment sniffing at call time.
func NewEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Backend {
	case BackendONNX:
		onnxEmbedder, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err == nil {
			return WithCache(onnxEmbedder, cfg.CacheSize), nil
		}
		if logger != nil {
			logger.Warn("onnx embedder unavailable, falling back to frequency backend", zap.Error(err))
		}
		fallthrough
	case BackendFrequency, "":
		return WithCache(NewFrequencyEmbedder(cfg.Dimensions), cfg.CacheSize), nil
	case BackendFeature:
		return NewFeatureEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: onnx, frequency, feature)", cfg.Backend)
	}
}
