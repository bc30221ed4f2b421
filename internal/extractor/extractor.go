// Package extractor pulls typed nodes and causal edges out of text and
// structured experiences for the knowledge graph.
package extractor

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/llm"
	"github.com/hyperjump/oboeru/internal/models"
)

// Extractor turns content into graph nodes and edges. The source argument is
// recorded as edge evidence.
type Extractor interface {
	FromText(ctx context.Context, source, text string) (*models.Extraction, error)
	FromExperience(ctx context.Context, source string, exp models.Experience) (*models.Extraction, error)
}

// New returns the LLM-backed extractor when a model is available, otherwise
// the pattern extractor. The LLM extractor itself falls back to patterns on
// per-call failures.
func New(client llm.Client, logger *zap.Logger) Extractor {
	if client != nil && client.Available() {
		return NewLLMExtractor(client, logger)
	}
	return NewPatternExtractor()
}
