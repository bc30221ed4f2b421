// Package brain is the retrieval orchestrator: it owns the embedder, vector
// index, document store, conversational memory, and knowledge graph, and
// exposes the ingest/retrieve/ask surface the CLI builds on.
package brain

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/config"
	"github.com/hyperjump/oboeru/internal/docstore"
	"github.com/hyperjump/oboeru/internal/embedding"
	"github.com/hyperjump/oboeru/internal/extractor"
	"github.com/hyperjump/oboeru/internal/graph"
	"github.com/hyperjump/oboeru/internal/ingest"
	"github.com/hyperjump/oboeru/internal/llm"
	"github.com/hyperjump/oboeru/internal/memory"
	"github.com/hyperjump/oboeru/internal/models"
	"github.com/hyperjump/oboeru/internal/vector"
)

const (
	indexFileName  = "index.bin"
	corpusFileName = "corpus.json"
	chromemDirName = "vectors"
)

// Components are the collaborators a Brain orchestrates. Tests inject
// lightweight substitutes; production wiring comes from Build.
type Components struct {
	Embedder  embedding.Embedder
	Index     vector.Index
	Docs      *docstore.Store
	Memory    *memory.Cache
	Graph     *graph.Graph
	Extractor extractor.Extractor
	LLM       llm.Client
}

// Brain is the orchestrator. Retrieval takes a read lock; ingest and removal
// take the write lock, so queries see either the old corpus or the new one,
// never a half-rebuilt index.
type Brain struct {
	cfg    *config.Config
	logger *zap.Logger

	embedder  embedding.Embedder
	index     vector.Index
	docs      *docstore.Store
	memory    *memory.Cache
	graph     *graph.Graph
	extractor extractor.Extractor
	llm       llm.Client

	cache *lru.Cache[string, []models.RetrievedChunk]

	mu sync.RWMutex
}

// New assembles a Brain from pre-built components.
func New(cfg *config.Config, comp Components, logger *zap.Logger) (*Brain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cacheSize := cfg.Retrieval.CacheSize
	if cacheSize <= 0 {
		cacheSize = 100
	}
	cache, err := lru.New[string, []models.RetrievedChunk](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval cache: %w", err)
	}
	return &Brain{
		cfg:       cfg,
		logger:    logger,
		embedder:  comp.Embedder,
		index:     comp.Index,
		docs:      comp.Docs,
		memory:    comp.Memory,
		graph:     comp.Graph,
		extractor: comp.Extractor,
		llm:       comp.LLM,
		cache:     cache,
	}, nil
}

// Build constructs every component from configuration and loads any persisted
// state. This is the production entry point.
func Build(cfg *config.Config, logger *zap.Logger) (*Brain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	logger.Info("embedding backend ready",
		zap.String("backend", cfg.Embedding.Backend),
		zap.Int("dimensions", embedder.Dimensions()))

	indexPath := ""
	if cfg.Storage.CorpusDir != "" {
		indexPath = filepath.Join(cfg.Storage.CorpusDir, chromemDirName)
	}
	index, err := vector.New(cfg.Storage.IndexType, embedder.Dimensions(), indexPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	llmClient, err := llm.NewClient(&cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	var summarizer memory.Summarizer = memory.TruncatingSummarizer{}
	if llmClient.Available() {
		summarizer = llmSummarizer{llmClient}
	}
	memCache, err := memory.New(cfg.Storage.MemoryDBPath, embedder, summarizer, cfg.Memory, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory cache: %w", err)
	}

	knowledgeGraph, err := graph.Open(cfg.Storage.GraphDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge graph: %w", err)
	}

	b, err := New(cfg, Components{
		Embedder:  embedder,
		Index:     index,
		Docs:      docstore.New(),
		Memory:    memCache,
		Graph:     knowledgeGraph,
		Extractor: extractor.New(llmClient, logger),
		LLM:       llmClient,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := b.Load(); err != nil {
		return nil, err
	}
	return b, nil
}

// llmSummarizer adapts the llm client to the memory summarizer interface.
type llmSummarizer struct {
	client llm.Client
}

func (s llmSummarizer) Summarize(ctx context.Context, texts []string) (string, error) {
	return s.client.Summarize(ctx, texts)
}

// Ingest chunks, extracts relations from, embeds, and indexes raw documents.
// Returns the number of chunks added.
func (b *Brain) Ingest(ctx context.Context, docs []models.RawDocument) (int, error) {
	extractions := make([]*models.Extraction, 0, len(docs))
	for _, doc := range docs {
		extraction, err := b.extractor.FromText(ctx, doc.Source, doc.Text)
		if err != nil {
			b.logger.Warn("relation extraction failed", zap.String("source", doc.Source), zap.Error(err))
			continue
		}
		extractions = append(extractions, extraction)
	}
	return b.ingest(ctx, docs, extractions)
}

// IngestExperiences flattens structured experiences into documents and maps
// their action plans onto the knowledge graph.
func (b *Brain) IngestExperiences(ctx context.Context, exps []models.Experience) (int, error) {
	docs := make([]models.RawDocument, 0, len(exps))
	extractions := make([]*models.Extraction, 0, len(exps))
	for _, exp := range exps {
		doc, err := ingest.FlattenExperience(exp)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
		extraction, err := b.extractor.FromExperience(ctx, doc.Source, exp)
		if err != nil {
			b.logger.Warn("experience extraction failed", zap.String("source", doc.Source), zap.Error(err))
			continue
		}
		extractions = append(extractions, extraction)
	}
	return b.ingest(ctx, docs, extractions)
}

// IngestFiles loads and ingests files from disk.
func (b *Brain) IngestFiles(ctx context.Context, paths []string) (int, error) {
	docs := make([]models.RawDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := ingest.LoadFile(path)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}
	return b.Ingest(ctx, docs)
}

// ingest applies extractions to the graph, then adds chunks to the store and
// index under the write lock, rebuilding embeddings when the backend needs a
// refit over the grown corpus.
func (b *Brain) ingest(ctx context.Context, docs []models.RawDocument, extractions []*models.Extraction) (int, error) {
	for _, extraction := range extractions {
		if err := b.applyExtraction(ctx, extraction); err != nil {
			return 0, err
		}
	}

	chunks := ingest.PrepareDocuments(docs, b.cfg.Retrieval.ChunkChars, b.cfg.Retrieval.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.docs.Add(chunks)

	if b.embedder.RequiresFit() {
		// Fitting changes every vector, so the whole index is rebuilt.
		if err := b.embedder.Fit(ctx, b.docs.Texts()); err != nil {
			return 0, fmt.Errorf("failed to fit embedder: %w", err)
		}
		if err := b.rebuildIndexLocked(ctx); err != nil {
			return 0, err
		}
	} else {
		ids := make([]string, len(chunks))
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
			texts[i] = c.Text
		}
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if err := b.index.Add(ctx, ids, vectors); err != nil {
			return 0, fmt.Errorf("failed to index chunks: %w", err)
		}
	}

	b.cache.Purge()
	if err := b.saveLocked(); err != nil {
		return 0, err
	}
	b.logger.Info("ingested documents",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("index_size", b.index.Size()))
	return len(chunks), nil
}

func (b *Brain) applyExtraction(ctx context.Context, extraction *models.Extraction) error {
	for _, node := range extraction.Nodes {
		if _, err := b.graph.AddNode(ctx, node); err != nil {
			return fmt.Errorf("failed to add graph node %q: %w", node.Label, err)
		}
	}
	for _, edge := range extraction.Edges {
		if err := b.graph.AddEdge(ctx, edge); err != nil {
			return fmt.Errorf("failed to add graph edge: %w", err)
		}
	}
	return nil
}

// rebuildIndexLocked re-embeds the whole corpus and replaces the index
// contents. Callers hold the write lock.
func (b *Brain) rebuildIndexLocked(ctx context.Context) error {
	if err := b.index.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	ids := b.docs.IDs()
	if len(ids) == 0 {
		return nil
	}
	vectors, err := b.embedder.EmbedBatch(ctx, b.docs.Texts())
	if err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}
	if err := b.index.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	return nil
}

// RemoveSources deletes every chunk whose source matches one of the patterns
// (trailing '*' matches by prefix) and rebuilds the index from what is left.
// Returns the number of chunks removed.
func (b *Brain) RemoveSources(ctx context.Context, patterns []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := b.docs.MatchSources(patterns)
	if len(ids) == 0 {
		return 0, nil
	}
	b.docs.Remove(ids)

	if b.embedder.RequiresFit() && b.docs.Len() > 0 {
		if err := b.embedder.Fit(ctx, b.docs.Texts()); err != nil {
			return 0, fmt.Errorf("failed to refit embedder: %w", err)
		}
	}
	if err := b.rebuildIndexLocked(ctx); err != nil {
		return 0, err
	}

	b.cache.Purge()
	if err := b.saveLocked(); err != nil {
		return 0, err
	}
	b.logger.Info("removed sources",
		zap.Strings("patterns", patterns),
		zap.Int("chunks_removed", len(ids)),
		zap.Int("index_size", b.index.Size()))
	return len(ids), nil
}

// Save persists the index and corpus sidecar to the configured corpus dir.
func (b *Brain) Save() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.saveLocked()
}

func (b *Brain) saveLocked() error {
	if b.cfg.Storage.CorpusDir == "" {
		return nil
	}
	if err := b.index.Save(filepath.Join(b.cfg.Storage.CorpusDir, indexFileName)); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	if err := b.docs.Save(filepath.Join(b.cfg.Storage.CorpusDir, corpusFileName)); err != nil {
		return fmt.Errorf("failed to save corpus: %w", err)
	}
	return nil
}

// Load restores the corpus sidecar and index from the corpus dir. The
// embedding backend is refit on the loaded corpus so queries encode in the
// same space as the persisted vectors.
func (b *Brain) Load() error {
	if b.cfg.Storage.CorpusDir == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.docs.Load(filepath.Join(b.cfg.Storage.CorpusDir, corpusFileName)); err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	if b.embedder.RequiresFit() && b.docs.Len() > 0 {
		if err := b.embedder.Fit(context.Background(), b.docs.Texts()); err != nil {
			return fmt.Errorf("failed to refit embedder: %w", err)
		}
	}
	if err := b.index.Load(filepath.Join(b.cfg.Storage.CorpusDir, indexFileName)); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	if b.docs.Len() != b.index.Size() {
		b.logger.Warn("corpus and index disagree, rebuilding index",
			zap.Int("chunks", b.docs.Len()),
			zap.Int("vectors", b.index.Size()))
		if err := b.rebuildIndexLocked(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

// Status summarizes the state of every component.
type Status struct {
	Chunks    int                 `json:"chunks"`
	IndexSize int                 `json:"index_size"`
	Sources   map[string]int      `json:"sources"`
	Graph     *models.GraphStats  `json:"graph"`
	Memory    *models.MemoryStats `json:"memory,omitempty"`
}

// Status reports corpus, graph, and memory counters.
func (b *Brain) Status(ctx context.Context) (*Status, error) {
	b.mu.RLock()
	status := &Status{
		Chunks:    b.docs.Len(),
		IndexSize: b.index.Size(),
		Sources:   b.docs.Sources(),
		Graph:     b.graph.Stats(),
	}
	b.mu.RUnlock()

	memStats, err := b.memory.Stats(ctx, b.cfg.UserID)
	if err != nil {
		return nil, err
	}
	status.Memory = memStats
	return status, nil
}

// Graph exposes the knowledge graph for direct queries.
func (b *Brain) Graph() *graph.Graph { return b.graph }

// Memory exposes the memory cache for direct queries.
func (b *Brain) Memory() *memory.Cache { return b.memory }

// Close releases every component.
func (b *Brain) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{b.index, b.memory, b.graph, b.embedder} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
