package brain

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/oboeru/internal/config"
	"github.com/hyperjump/oboeru/internal/docstore"
	"github.com/hyperjump/oboeru/internal/embedding"
	"github.com/hyperjump/oboeru/internal/extractor"
	"github.com/hyperjump/oboeru/internal/graph"
	"github.com/hyperjump/oboeru/internal/llm"
	"github.com/hyperjump/oboeru/internal/memory"
	"github.com/hyperjump/oboeru/internal/models"
	"github.com/hyperjump/oboeru/internal/vector"
)

func testBrainConfig(dir string) *config.Config {
	cfg := &config.Config{
		UserID: "tester",
		Storage: config.StorageConfig{
			CorpusDir:    dir,
			MemoryDBPath: filepath.Join(dir, "memory.db"),
			GraphDBPath:  filepath.Join(dir, "graph.db"),
			IndexType:    "memory",
		},
		Embedding: config.EmbeddingConfig{Backend: "frequency", Dimensions: 64, CacheSize: 100},
		Retrieval: config.RetrievalConfig{ChunkChars: 200, ChunkOverlap: 40, DefaultTopK: 3, CacheSize: 16},
		Memory:    config.MemoryConfig{MaxShortTerm: 10, RetentionDays: 7, CompactThreshold: 100, ScanLimit: 100},
		LLM:       config.LLMConfig{Provider: "none"},
	}
	return cfg
}

func newTestBrain(t *testing.T, cfg *config.Config, client llm.Client) *Brain {
	t.Helper()
	embedder := embedding.NewFrequencyEmbedder(cfg.Embedding.Dimensions)
	index, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions, nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}
	memCache, err := memory.New(cfg.Storage.MemoryDBPath, embedder, nil, cfg.Memory, nil)
	if err != nil {
		t.Fatalf("memory.New failed: %v", err)
	}
	knowledgeGraph, err := graph.Open(cfg.Storage.GraphDBPath, nil)
	if err != nil {
		t.Fatalf("graph.Open failed: %v", err)
	}
	if client == nil {
		client = llm.Disabled{}
	}
	b, err := New(cfg, Components{
		Embedder:  embedder,
		Index:     index,
		Docs:      docstore.New(),
		Memory:    memCache,
		Graph:     knowledgeGraph,
		Extractor: extractor.New(client, nil),
		LLM:       client,
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func sampleDocs() []models.RawDocument {
	return []models.RawDocument{
		{Source: "gardening.txt", Text: "Tomatoes need six hours of sun. Watering tomatoes daily produces healthy fruit. Pruning requires clean shears."},
		{Source: "cooking.txt", Text: "Slow braising tough cuts yields tender meat. Searing the beef first produces a deep crust."},
	}
}

func TestBrain_IngestAndRetrieve(t *testing.T) {
	b := newTestBrain(t, testBrainConfig(t.TempDir()), nil)
	ctx := context.Background()

	added, err := b.Ingest(ctx, sampleDocs())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if added == 0 {
		t.Fatal("expected chunks to be added")
	}

	results, err := b.Retrieve(ctx, "how much sun do tomatoes need", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected retrieval hits")
	}
	if results[0].Source != "gardening.txt" {
		t.Errorf("expected gardening.txt as top hit, got %s", results[0].Source)
	}
	if results[0].Text == "" || results[0].ID == "" {
		t.Errorf("retrieved chunk not joined with store: %+v", results[0])
	}

	// Relation extraction ran during ingest.
	stats := b.Graph().Stats()
	if stats.TotalEdges == 0 {
		t.Error("expected pattern-extracted edges in the graph")
	}
}

func TestBrain_RetrieveCache(t *testing.T) {
	b := newTestBrain(t, testBrainConfig(t.TempDir()), nil)
	ctx := context.Background()

	if _, err := b.Ingest(ctx, sampleDocs()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	first, err := b.Retrieve(ctx, "tomatoes", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if _, ok := b.cache.Get("tomatoes::2"); !ok {
		t.Fatal("expected result to be cached")
	}

	// Ingest invalidates the cache.
	if _, err := b.Ingest(ctx, []models.RawDocument{{Source: "more.txt", Text: "More tomato facts and sunlight advice."}}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, ok := b.cache.Get("tomatoes::2"); ok {
		t.Error("cache should be purged on ingest")
	}
	_ = first
}

func TestBrain_AskEmptyCorpus(t *testing.T) {
	b := newTestBrain(t, testBrainConfig(t.TempDir()), nil)

	answer, err := b.Ask(context.Background(), "conv1", "anything?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.Text != emptyCorpusAnswer {
		t.Errorf("expected empty-corpus answer, got %q", answer.Text)
	}
}

func TestBrain_AskExtractiveFallback(t *testing.T) {
	b := newTestBrain(t, testBrainConfig(t.TempDir()), nil)
	ctx := context.Background()

	if _, err := b.Ingest(ctx, sampleDocs()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	answer, err := b.Ask(ctx, "conv1", "how do I braise beef")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !strings.Contains(answer.Text, "cooking.txt") {
		t.Errorf("extractive answer should cite the source, got %q", answer.Text)
	}
	if len(answer.References) == 0 {
		t.Error("expected references on the answer")
	}

	// The exchange lands in memory, user turn first.
	recent, err := b.Memory().Recent(ctx, "tester", "conv1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recorded turns, got %d", len(recent))
	}
	if recent[0].Role != models.RoleUser || recent[1].Role != models.RoleAssistant {
		t.Errorf("turns out of order: %s then %s", recent[0].Role, recent[1].Role)
	}
}

// scriptedClient fakes the model with a fixed reply.
type scriptedClient struct {
	reply string
}

func (s scriptedClient) Chat(ctx context.Context, system string, messages []llm.Message) (string, error) {
	return s.reply, nil
}

func (s scriptedClient) ChatStream(ctx context.Context, system string, messages []llm.Message) (<-chan string, <-chan error) {
	ch := make(chan string, len(s.reply))
	for _, r := range s.reply {
		ch <- string(r)
	}
	close(ch)
	errc := make(chan error)
	close(errc)
	return ch, errc
}

func (s scriptedClient) Summarize(ctx context.Context, texts []string) (string, error) {
	return s.reply, nil
}

func (s scriptedClient) Available() bool { return true }

func TestBrain_AskWithModel(t *testing.T) {
	b := newTestBrain(t, testBrainConfig(t.TempDir()), scriptedClient{reply: "Braise it low and slow."})
	ctx := context.Background()

	if _, err := b.Ingest(ctx, sampleDocs()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	answer, err := b.Ask(ctx, "conv1", "how do I braise beef")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.Text != "Braise it low and slow." {
		t.Errorf("expected model answer, got %q", answer.Text)
	}
}

func TestBrain_AskStream(t *testing.T) {
	b := newTestBrain(t, testBrainConfig(t.TempDir()), scriptedClient{reply: "streamed answer"})
	ctx := context.Background()

	if _, err := b.Ingest(ctx, sampleDocs()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	var got strings.Builder
	answer, err := b.AskStream(ctx, "conv1", "anything about tomatoes", func(delta string) {
		got.WriteString(delta)
	})
	if err != nil {
		t.Fatalf("AskStream failed: %v", err)
	}
	if got.String() != "streamed answer" {
		t.Errorf("deltas did not accumulate, got %q", got.String())
	}
	if answer.Text != "streamed answer" {
		t.Errorf("final answer mismatch: %q", answer.Text)
	}
}

func TestBrain_IngestExperiences(t *testing.T) {
	b := newTestBrain(t, testBrainConfig(t.TempDir()), nil)
	ctx := context.Background()

	exp := models.Experience{
		Title:       "recover crashed node",
		Context:     "etcd member lost quorum",
		SensoryData: map[string]string{"alerts": "firing"},
		ActionPlan:  []string{"drain traffic", "replace member"},
	}
	added, err := b.IngestExperiences(ctx, []models.Experience{exp})
	if err != nil {
		t.Fatalf("IngestExperiences failed: %v", err)
	}
	if added == 0 {
		t.Fatal("expected chunks from the flattened experience")
	}

	// The action plan became a solution path.
	paths := b.Graph().FindSolutionPath("crashed node", 0)
	if len(paths) == 0 {
		t.Fatal("expected a solution path from the experience")
	}

	// Retrieval projects the experience back.
	answer, err := b.Ask(ctx, "conv1", "how to recover a crashed node")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.Projection == nil {
		t.Fatal("expected an experience projection on the answer")
	}
	if answer.Projection.Title != exp.Title || len(answer.Projection.ActionPlan) != 2 {
		t.Errorf("unexpected projection: %+v", answer.Projection)
	}
	if len(answer.Paths) == 0 {
		t.Error("expected solution paths on the answer")
	}
}

func TestBrain_RemoveSources(t *testing.T) {
	b := newTestBrain(t, testBrainConfig(t.TempDir()), nil)
	ctx := context.Background()

	if _, err := b.Ingest(ctx, sampleDocs()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	removed, err := b.RemoveSources(ctx, []string{"garden*"})
	if err != nil {
		t.Fatalf("RemoveSources failed: %v", err)
	}
	if removed == 0 {
		t.Fatal("expected chunks removed")
	}

	status, err := b.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Chunks != status.IndexSize {
		t.Errorf("store and index out of sync: %d chunks vs %d vectors", status.Chunks, status.IndexSize)
	}
	if _, ok := status.Sources["gardening.txt"]; ok {
		t.Error("removed source still present")
	}

	results, err := b.Retrieve(ctx, "tomatoes and sun", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for _, r := range results {
		if r.Source == "gardening.txt" {
			t.Error("removed source still retrievable")
		}
	}

	// Removing everything leaves an empty but consistent corpus.
	if _, err := b.RemoveSources(ctx, []string{"*"}); err != nil {
		t.Fatalf("RemoveSources failed: %v", err)
	}
	status, _ = b.Status(ctx)
	if status.Chunks != 0 || status.IndexSize != 0 {
		t.Errorf("expected empty corpus, got %+v", status)
	}
}

func TestBrain_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := testBrainConfig(dir)
	ctx := context.Background()

	b1 := newTestBrain(t, cfg, nil)
	if _, err := b1.Ingest(ctx, sampleDocs()); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	want, err := b1.Retrieve(ctx, "tomatoes", 1)
	if err != nil || len(want) == 0 {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// A fresh brain over the same corpus dir restores the corpus and index.
	cfg2 := testBrainConfig(dir)
	cfg2.Storage.MemoryDBPath = filepath.Join(dir, "memory2.db")
	cfg2.Storage.GraphDBPath = filepath.Join(dir, "graph2.db")
	b2 := newTestBrain(t, cfg2, nil)
	if err := b2.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	status, err := b2.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Chunks == 0 || status.Chunks != status.IndexSize {
		t.Fatalf("corpus not restored: %+v", status)
	}
	got, err := b2.Retrieve(ctx, "tomatoes", 1)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) == 0 || got[0].ID != want[0].ID {
		t.Errorf("expected same top hit after reload, want %v got %v", want, got)
	}
}
