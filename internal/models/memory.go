package models

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// MemoryRecord is one conversational turn stored in the long-term memory tier.
// Importance is a heuristic weight in [0,1] used to bias semantic recall.
// IsSummarized flips to true once the record has been folded into a daily
// summary; the record itself is never deleted except by an explicit purge.
type MemoryRecord struct {
	ID             int64             `json:"id"`
	UserID         string            `json:"user_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Role           string            `json:"role"`
	Content        string            `json:"content"`
	Embedding      []float32         `json:"-"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Importance     float64           `json:"importance"`
	IsSummarized   bool              `json:"is_summarized"`
}

// ScoredMemory is a memory record paired with its combined relevance score
// (0.7 * cosine similarity + 0.3 * importance).
type ScoredMemory struct {
	Record MemoryRecord `json:"record"`
	Score  float64      `json:"score"`
}

// MemoryStats summarizes the state of a user's long-term memory.
type MemoryStats struct {
	TotalRecords      int64     `json:"total_records"`
	SummarizedRecords int64     `json:"summarized_records"`
	ActiveRecords     int64     `json:"active_records"`
	AverageImportance float64   `json:"average_importance"`
	OldestTimestamp   time.Time `json:"oldest_timestamp"`
	ShortTermSize     int       `json:"short_term_size"`
}
