package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/models"
	"github.com/hyperjump/oboeru/pkg/utils"
)

// Summarizer condenses a day's worth of memory texts into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
}

// TruncatingSummarizer is the no-model fallback: it joins the texts and
// truncates the result. Used when no language model is configured or when
// summarization fails.
type TruncatingSummarizer struct{}

// Summarize joins and truncates.
func (TruncatingSummarizer) Summarize(_ context.Context, texts []string) (string, error) {
	return utils.Truncate(strings.Join(texts, " | "), 500), nil
}

// Compact folds old un-summarized memories into per-day summary records.
// Nothing happens until more than the configured threshold of un-summarized
// rows is older than the retention window. Each calendar day is summarized
// into one system record, and the source rows are marked summarized (never
// deleted). Compaction is idempotent: already-summarized rows, including the
// summary records themselves, are never re-summarized. Returns the number of
// summaries written.
func (c *Cache) Compact(ctx context.Context, userID string) (int, error) {
	cutoff := c.now().UTC().AddDate(0, 0, -c.retentionDays)

	var pending int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM long_term_memory
		 WHERE user_id = ? AND is_summarized = 0 AND timestamp < ?`,
		userID, cutoff).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("failed to count compactable memories: %w", err)
	}
	if pending <= c.compactThreshold {
		return 0, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, role, content, embedding, metadata, timestamp, importance_score, is_summarized
		 FROM long_term_memory
		 WHERE user_id = ? AND is_summarized = 0 AND timestamp < ?
		 ORDER BY timestamp ASC, id ASC`,
		userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query compactable memories: %w", err)
	}
	records, err := scanRecords(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	byDay := make(map[string][]models.MemoryRecord)
	for _, rec := range records {
		day := rec.Timestamp.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], rec)
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	written := 0
	for _, day := range days {
		group := byDay[day]
		texts := make([]string, len(group))
		ids := make([]int64, len(group))
		for i, rec := range group {
			texts[i] = rec.Role + ": " + rec.Content
			ids[i] = rec.ID
		}

		summary, err := c.summarizer.Summarize(ctx, texts)
		if err != nil {
			c.logger.Warn("summarizer failed, truncating instead",
				zap.String("day", day), zap.Error(err))
			summary, _ = TruncatingSummarizer{}.Summarize(ctx, texts)
		}
		summary = fmt.Sprintf("Summary of %s: %s", day, summary)

		if err := c.writeSummary(ctx, userID, day, summary, len(group), ids); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Summary returns the daily summary records for a user from the last n days,
// oldest first. With n <= 0 every summary is returned.
func (c *Cache) Summary(ctx context.Context, userID string, days int) ([]models.MemoryRecord, error) {
	query := `SELECT id, user_id, conversation_id, role, content, embedding, metadata, timestamp, importance_score, is_summarized
		 FROM long_term_memory
		 WHERE user_id = ? AND role = ? AND is_summarized = 1`
	args := []interface{}{userID, models.RoleSystem}
	if days > 0 {
		query += ` AND timestamp >= ?`
		args = append(args, c.now().UTC().AddDate(0, 0, -days))
	}
	query += ` ORDER BY timestamp ASC, id ASC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// writeSummary inserts the summary record and marks its sources in one
// transaction so a crash cannot double-summarize a day.
func (c *Cache) writeSummary(ctx context.Context, userID, day, summary string, count int, sourceIDs []int64) error {
	emb, err := c.embedder.Embed(ctx, summary)
	if err != nil {
		c.logger.Warn("summary embedding failed, storing without vector", zap.Error(err))
		emb = nil
	}
	metadata, _ := json.Marshal(map[string]string{
		"summary_of":    day,
		"summary_count": strconv.Itoa(count),
	})

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin compaction tx: %w", err)
	}
	defer tx.Rollback()

	summaryDay, _ := time.Parse("2006-01-02", day)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO long_term_memory
		 (user_id, conversation_id, role, content, embedding, metadata, timestamp, importance_score, is_summarized)
		 VALUES (?, '', ?, ?, ?, ?, ?, ?, 1)`,
		userID, models.RoleSystem, summary, encodeVector(emb), string(metadata),
		summaryDay.Add(23*time.Hour+59*time.Minute), 0.7)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	placeholders := make([]string, len(sourceIDs))
	args := make([]interface{}, len(sourceIDs))
	for i, id := range sourceIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE long_term_memory SET is_summarized = 1 WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to mark summarized: %w", err)
	}
	return tx.Commit()
}
