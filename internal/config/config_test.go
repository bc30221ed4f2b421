package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.UserID != "anonymous" {
		t.Errorf("UserID = %q", cfg.UserID)
	}
	if cfg.Storage.IndexType != "memory" {
		t.Errorf("IndexType = %q", cfg.Storage.IndexType)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("Dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.ChunkChars != 800 || cfg.Retrieval.ChunkOverlap != 150 {
		t.Errorf("chunking defaults = %d/%d", cfg.Retrieval.ChunkChars, cfg.Retrieval.ChunkOverlap)
	}
	if cfg.Retrieval.MaxPathDepth != 4 {
		t.Errorf("MaxPathDepth = %d", cfg.Retrieval.MaxPathDepth)
	}
	if cfg.Memory.MaxShortTerm != 20 || cfg.Memory.RetentionDays != 7 || cfg.Memory.CompactThreshold != 100 {
		t.Errorf("memory defaults = %+v", cfg.Memory)
	}
	if cfg.LLM.Provider != "none" {
		t.Errorf("LLM provider = %q", cfg.LLM.Provider)
	}
}

func TestApplyDefaults_derivedPaths(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{CorpusDir: "/data/corpus"}}
	ApplyDefaults(cfg)
	if cfg.Storage.MemoryDBPath != "/data/corpus/memory.db" {
		t.Errorf("MemoryDBPath = %q", cfg.Storage.MemoryDBPath)
	}
	if cfg.Storage.GraphDBPath != "/data/corpus/knowledge_graph.db" {
		t.Errorf("GraphDBPath = %q", cfg.Storage.GraphDBPath)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
user_id: tester
storage:
  corpus_dir: ./corpus
  index_type: chromem
embedding:
  backend: frequency
  dimensions: 64
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug || cfg.UserID != "tester" {
		t.Errorf("debug/user = %v/%q", cfg.Debug, cfg.UserID)
	}
	if cfg.Storage.IndexType != "chromem" {
		t.Errorf("IndexType = %q", cfg.Storage.IndexType)
	}
	if cfg.Embedding.Dimensions != 64 {
		t.Errorf("Dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.Storage.CorpusDir != filepath.Join(dir, "corpus") {
		t.Errorf("CorpusDir = %q not expanded relative to config", cfg.Storage.CorpusDir)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("Provider = %q", cfg.LLM.Provider)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}
