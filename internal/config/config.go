// Package config provides configuration loading and structs for the oboeru knowledge core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	UserID    string          `yaml:"user_id"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Memory    MemoryConfig    `yaml:"memory"`
	LLM       LLMConfig       `yaml:"llm"`
	Watch     WatchConfig     `yaml:"watch"`
}

// StorageConfig holds paths for the corpus directory and databases.
type StorageConfig struct {
	// CorpusDir holds the vector index file/DB and the corpus sidecar.
	// Empty disables persistence (in-memory only).
	CorpusDir    string `yaml:"corpus_dir"`
	MemoryDBPath string `yaml:"memory_db_path"`
	GraphDBPath  string `yaml:"graph_db_path"`
	// IndexType selects the vector index: "memory" (exact scan) or
	// "chromem" (persistent embedded vector DB).
	IndexType string `yaml:"index_type"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	// Backend is the preferred backend: "onnx", "frequency", or "feature".
	// Initialization failures fall through in that order.
	Backend    string `yaml:"backend"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds chunking and retrieval settings.
type RetrievalConfig struct {
	ChunkChars   int `yaml:"chunk_chars"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	DefaultTopK  int `yaml:"default_top_k"`
	CacheSize    int `yaml:"cache_size"`
	// MaxPathDepth bounds solution path search in hops.
	MaxPathDepth int `yaml:"max_path_depth"`
}

// MemoryConfig holds conversational memory settings.
type MemoryConfig struct {
	MaxShortTerm     int `yaml:"max_short_term"`
	RetentionDays    int `yaml:"retention_days"`
	CompactThreshold int `yaml:"compact_threshold"`
	ScanLimit        int `yaml:"scan_limit"`
}

// LLMConfig holds external language model settings.
type LLMConfig struct {
	// Provider is "anthropic" or "none". With "none" the core degrades to
	// extractive answers and truncation-based summaries.
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// WatchConfig holds directory watch settings for auto-ingest.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.CorpusDir = expandPath(cfg.Storage.CorpusDir, configDir)
	cfg.Storage.MemoryDBPath = expandPath(cfg.Storage.MemoryDBPath, configDir)
	cfg.Storage.GraphDBPath = expandPath(cfg.Storage.GraphDBPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
