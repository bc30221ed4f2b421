package models

// RetrievedChunk is a single retrieval hit: chunk metadata joined with
// its text and scored by cosine similarity.
type RetrievedChunk struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Score      float64           `json:"score"`
	Text       string            `json:"text"`
}

// Answer is the response to a question: the answer text, the passages it
// was grounded on, any solution paths found in the knowledge graph, and
// an optional experience projection reconstructed from the top hit.
type Answer struct {
	Text       string           `json:"answer"`
	References []RetrievedChunk `json:"references"`
	Paths      []SolutionPath   `json:"paths,omitempty"`
	Projection *Experience      `json:"projection,omitempty"`
}
