package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.UserID == "" {
		cfg.UserID = "anonymous"
	}
	if cfg.Storage.IndexType == "" {
		cfg.Storage.IndexType = "memory"
	}
	if cfg.Storage.MemoryDBPath == "" && cfg.Storage.CorpusDir != "" {
		cfg.Storage.MemoryDBPath = cfg.Storage.CorpusDir + "/memory.db"
	}
	if cfg.Storage.GraphDBPath == "" && cfg.Storage.CorpusDir != "" {
		cfg.Storage.GraphDBPath = cfg.Storage.CorpusDir + "/knowledge_graph.db"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "frequency"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.ChunkChars == 0 {
		cfg.Retrieval.ChunkChars = 800
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 150
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 4
	}
	if cfg.Retrieval.CacheSize == 0 {
		cfg.Retrieval.CacheSize = 100
	}
	if cfg.Retrieval.MaxPathDepth == 0 {
		cfg.Retrieval.MaxPathDepth = 4
	}
	if cfg.Memory.MaxShortTerm == 0 {
		cfg.Memory.MaxShortTerm = 20
	}
	if cfg.Memory.RetentionDays == 0 {
		cfg.Memory.RetentionDays = 7
	}
	if cfg.Memory.CompactThreshold == 0 {
		cfg.Memory.CompactThreshold = 100
	}
	if cfg.Memory.ScanLimit == 0 {
		cfg.Memory.ScanLimit = 100
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "none"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-sonnet-4-20250514"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".csv"}
	}
}
