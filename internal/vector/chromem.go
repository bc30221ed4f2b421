package vector

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const chromemCollection = "chunks"

// ChromemIndex is a persistent vector index backed by chromem-go, an embedded
// pure-Go vector database. Documents are written through to disk on Add, so
// Save and Load are no-ops kept for interface compatibility.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewChromemIndex opens (or creates) a persistent index at path.
func NewChromemIndex(path string, dimensions int, logger *zap.Logger) (*ChromemIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	collection, err := db.GetOrCreateCollection(chromemCollection, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection: %w", err)
	}
	return &ChromemIndex{
		db:         db,
		collection: collection,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// rejectEmbeddingFunc guards against chromem computing embeddings itself;
// all vectors are provided by the caller.
func rejectEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings must be provided explicitly")
}

// Add writes vectors with the given IDs through to disk.
func (c *ChromemIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", ErrDimensionMismatch, len(ids), len(vectors))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != c.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vectors[i]), c.dimensions)
		}
		doc := chromem.Document{
			ID:        id,
			Embedding: vectors[i],
			// chromem requires non-empty content; the chunk text lives in the
			// document store, so only the ID needs to round-trip.
			Content: id,
		}
		if err := c.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", id, err)
		}
	}
	return nil
}

// Search returns the top-k documents by cosine similarity. Unlike the
// in-memory index, the persistent index rejects dimension mismatches.
func (c *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), c.dimensions)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	count := c.collection.Count()
	if k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}
	hits, err := c.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	results := make([]*Result, len(hits))
	for i, hit := range hits {
		results[i] = &Result{ID: hit.ID, Score: float64(hit.Similarity)}
	}
	return results, nil
}

// Remove deletes documents by ID.
func (c *ChromemIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Clear drops the collection and recreates it empty.
func (c *ChromemIndex) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.DeleteCollection(chromemCollection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	collection, err := c.db.GetOrCreateCollection(chromemCollection, nil, rejectEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	c.collection = collection
	return nil
}

// Save is a no-op; chromem persists on write.
func (c *ChromemIndex) Save(path string) error { return nil }

// Load is a no-op; chromem loads at open.
func (c *ChromemIndex) Load(path string) error { return nil }

// Size returns the number of stored vectors.
func (c *ChromemIndex) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collection.Count()
}

// Close is a no-op; chromem holds no open handles between operations.
func (c *ChromemIndex) Close() error { return nil }
