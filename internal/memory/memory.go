// Package memory provides the dual-tier conversational memory cache: a small
// in-process short-term window plus a SQLite-backed long-term store with
// importance-weighted semantic recall and daily-summary compaction.
package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/config"
	"github.com/hyperjump/oboeru/internal/embedding"
	"github.com/hyperjump/oboeru/internal/models"
	"github.com/hyperjump/oboeru/pkg/utils"
)

// Weights for combined recall scoring.
const (
	similarityWeight = 0.7
	importanceWeight = 0.3
)

// Cache is the dual-tier memory. All exported methods are safe for concurrent
// use; SQLite serializes writers and the short-term tier has its own lock.
type Cache struct {
	db         *sql.DB
	embedder   embedding.Embedder
	summarizer Summarizer
	logger     *zap.Logger

	maxShortTerm     int
	retentionDays    int
	compactThreshold int
	scanLimit        int

	shortMu sync.Mutex
	short   map[string][]models.MemoryRecord

	// now is replaceable in tests.
	now func() time.Time
}

// New opens (or creates) the memory database at dbPath.
func New(dbPath string, embedder embedding.Embedder, summarizer Summarizer, cfg config.MemoryConfig, logger *zap.Logger) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create memory db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize memory schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if summarizer == nil {
		summarizer = TruncatingSummarizer{}
	}
	return &Cache{
		db:               db,
		embedder:         embedder,
		summarizer:       summarizer,
		logger:           logger,
		maxShortTerm:     cfg.MaxShortTerm,
		retentionDays:    cfg.RetentionDays,
		compactThreshold: cfg.CompactThreshold,
		scanLimit:        cfg.ScanLimit,
		short:            make(map[string][]models.MemoryRecord),
		now:              time.Now,
	}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS long_term_memory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		conversation_id TEXT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB,
		metadata TEXT,
		timestamp TIMESTAMP NOT NULL,
		importance_score REAL DEFAULT 0.5,
		is_summarized INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_memory_user ON long_term_memory(user_id);
	CREATE INDEX IF NOT EXISTS idx_memory_timestamp ON long_term_memory(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_memory_importance ON long_term_memory(importance_score DESC);
	`
	_, err := db.Exec(schema)
	return err
}

func shortKey(userID, conversationID string) string {
	return userID + "\x00" + conversationID
}

// Add stores one conversational turn in both tiers and returns the stored
// record. An embedding failure is logged and the record is written without a
// vector; it is then invisible to semantic recall but still listed by Recent.
func (c *Cache) Add(ctx context.Context, userID, conversationID, role, content string, metadata map[string]string) (*models.MemoryRecord, error) {
	rec := models.MemoryRecord{
		UserID:         userID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		Timestamp:      c.now().UTC(),
		Importance:     ScoreImportance(role, content, metadata),
	}

	emb, err := c.embedder.Embed(ctx, content)
	if err != nil {
		c.logger.Warn("memory embedding failed, storing without vector", zap.Error(err))
	} else {
		rec.Embedding = emb
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO long_term_memory
		 (user_id, conversation_id, role, content, embedding, metadata, timestamp, importance_score, is_summarized)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		rec.UserID, rec.ConversationID, rec.Role, rec.Content,
		encodeVector(rec.Embedding), string(metadataJSON), rec.Timestamp, rec.Importance,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert memory: %w", err)
	}
	rec.ID, _ = res.LastInsertId()

	c.pushShortTerm(rec)

	if compacted, err := c.Compact(ctx, userID); err != nil {
		c.logger.Warn("memory compaction failed", zap.Error(err))
	} else if compacted > 0 {
		c.logger.Info("compacted old memories into daily summaries", zap.Int("summaries", compacted))
	}

	return &rec, nil
}

func (c *Cache) pushShortTerm(rec models.MemoryRecord) {
	key := shortKey(rec.UserID, rec.ConversationID)
	c.shortMu.Lock()
	defer c.shortMu.Unlock()
	window := append(c.short[key], rec)
	if c.maxShortTerm > 0 && len(window) > c.maxShortTerm {
		window = window[len(window)-c.maxShortTerm:]
	}
	c.short[key] = window
}

// Recent returns the last n turns of a conversation, oldest first. It is
// served from the short-term tier; when that tier is cold (fresh process) it
// falls back to the database.
func (c *Cache) Recent(ctx context.Context, userID, conversationID string, n int) ([]models.MemoryRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	c.shortMu.Lock()
	window := c.short[shortKey(userID, conversationID)]
	if len(window) > 0 {
		out := make([]models.MemoryRecord, len(window))
		copy(out, window)
		c.shortMu.Unlock()
		if len(out) > n {
			out = out[len(out)-n:]
		}
		return out, nil
	}
	c.shortMu.Unlock()

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, role, content, embedding, metadata, timestamp, importance_score, is_summarized
		 FROM long_term_memory
		 WHERE user_id = ? AND conversation_id = ? AND is_summarized = 0
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		userID, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent memories: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	// Reverse to oldest-first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Relevant returns up to limit memories scored by combined cosine similarity
// and importance, scanning the most recent embedded rows. Ties break toward
// the more recent record.
func (c *Cache) Relevant(ctx context.Context, userID, query string, limit int, minImportance float64) ([]models.ScoredMemory, error) {
	if limit <= 0 {
		return nil, nil
	}
	queryEmb, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, role, content, embedding, metadata, timestamp, importance_score, is_summarized
		 FROM long_term_memory
		 WHERE user_id = ? AND embedding IS NOT NULL AND importance_score >= ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		userID, minImportance, c.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredMemory, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		sim := utils.CosineSimilarity(queryEmb, rec.Embedding)
		scored = append(scored, models.ScoredMemory{
			Record: rec,
			Score:  similarityWeight*sim + importanceWeight*rec.Importance,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.Timestamp.After(scored[j].Record.Timestamp)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Purge deletes every memory of a user from both tiers.
func (c *Cache) Purge(ctx context.Context, userID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM long_term_memory WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to purge memories: %w", err)
	}
	c.shortMu.Lock()
	for key := range c.short {
		if len(key) > len(userID) && key[:len(userID)] == userID && key[len(userID)] == '\x00' {
			delete(c.short, key)
		}
	}
	c.shortMu.Unlock()
	return nil
}

// Stats reports counts and averages for a user's memory.
func (c *Cache) Stats(ctx context.Context, userID string) (*models.MemoryStats, error) {
	stats := &models.MemoryStats{}
	var oldest sql.NullTime
	var avg sql.NullFloat64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(is_summarized), 0),
		        AVG(importance_score),
		        MIN(timestamp)
		 FROM long_term_memory WHERE user_id = ?`, userID).
		Scan(&stats.TotalRecords, &stats.SummarizedRecords, &avg, &oldest)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory stats: %w", err)
	}
	stats.ActiveRecords = stats.TotalRecords - stats.SummarizedRecords
	if avg.Valid {
		stats.AverageImportance = avg.Float64
	}
	if oldest.Valid {
		stats.OldestTimestamp = oldest.Time
	}

	c.shortMu.Lock()
	for key, window := range c.short {
		if len(key) > len(userID) && key[:len(userID)] == userID && key[len(userID)] == '\x00' {
			stats.ShortTermSize += len(window)
		}
	}
	c.shortMu.Unlock()
	return stats, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func scanRecords(rows *sql.Rows) ([]models.MemoryRecord, error) {
	var records []models.MemoryRecord
	for rows.Next() {
		var rec models.MemoryRecord
		var emb []byte
		var metadataJSON sql.NullString
		var summarized int
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ConversationID, &rec.Role, &rec.Content,
			&emb, &metadataJSON, &rec.Timestamp, &rec.Importance, &summarized); err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		rec.Embedding = decodeVector(emb)
		rec.IsSummarized = summarized != 0
		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal memory metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// encodeVector serializes a float32 vector as little-endian bytes.
// A nil vector maps to NULL.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
