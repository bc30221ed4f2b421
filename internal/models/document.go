// Package models defines core data structures for documents, chunks, memory, and the knowledge graph.
package models

// RawDocument is an un-chunked input document.
type RawDocument struct {
	Source string            `json:"source"`
	Text   string            `json:"text"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Experience is a structured experience record accepted at the ingest
// boundary. It is flattened into embeddable text while the full structure
// is kept in chunk metadata so it can be projected back when retrieved.
type Experience struct {
	Title       string            `json:"title"`
	Context     string            `json:"context,omitempty"`
	SensoryData map[string]string `json:"sensory_data,omitempty"`
	ActionPlan  []string          `json:"action_plan,omitempty"`
}

// Chunk is a bounded slice of a source document, the unit of indexing.
// The ID ("source::chunk_N") is the join key between the vector index
// and the document store. Immutable once created.
type Chunk struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
