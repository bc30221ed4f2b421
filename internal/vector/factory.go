package vector

import (
	"fmt"

	"go.uber.org/zap"
)

// IndexType selects the vector index implementation.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search with binary file
	// persistence. Good for small corpora (<10k vectors).
	IndexTypeMemory IndexType = "memory"
	// IndexTypeChromem uses an embedded persistent vector database that
	// writes through to disk on every add.
	IndexTypeChromem IndexType = "chromem"
)

// New creates a vector index of the specified type. The path is only used by
// persistent index types.
func New(indexType string, dimensions int, path string, logger *zap.Logger) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions, logger)
	case IndexTypeChromem:
		return NewChromemIndex(path, dimensions, logger)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, chromem)", indexType)
	}
}
