package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/oboeru/internal/config"
	"github.com/hyperjump/oboeru/internal/embedding"
	"github.com/hyperjump/oboeru/internal/models"
)

func testConfig() config.MemoryConfig {
	return config.MemoryConfig{
		MaxShortTerm:     5,
		RetentionDays:    7,
		CompactThreshold: 3,
		ScanLimit:        100,
	}
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	c, err := New(path, embedding.NewMockEmbedder(32), nil, testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestScoreImportance(t *testing.T) {
	long := strings.Repeat("x", 250)
	veryLong := strings.Repeat("x", 600)
	tests := []struct {
		name     string
		role     string
		content  string
		metadata map[string]string
		want     float64
	}{
		{"assistant base", models.RoleAssistant, "ok", nil, 0.5},
		{"user bonus", models.RoleUser, "ok", nil, 0.6},
		{"long content", models.RoleAssistant, long, nil, 0.6},
		{"very long content", models.RoleAssistant, veryLong, nil, 0.7},
		{"keyword", models.RoleAssistant, "this is IMPORTANT", nil, 0.65},
		{"metadata flag", models.RoleAssistant, "ok", map[string]string{"pinned": "true"}, 0.6},
		{"capped at one", models.RoleUser, "always remember: " + veryLong,
			map[string]string{"pinned": "true", "goal": "yes", "decision": "1"}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreImportance(tt.role, tt.content, tt.metadata)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCache_AddAndRecent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if _, err := c.Add(ctx, "alice", "conv1", role, fmt.Sprintf("turn %d", i), nil); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	// Short-term window is bounded at MaxShortTerm.
	recent, err := c.Recent(ctx, "alice", "conv1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("expected 5 recent turns (window bound), got %d", len(recent))
	}
	if recent[0].Content != "turn 3" || recent[4].Content != "turn 7" {
		t.Errorf("unexpected window contents: first=%q last=%q", recent[0].Content, recent[4].Content)
	}

	// Long-term keeps everything.
	stats, err := c.Stats(ctx, "alice")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 8 {
		t.Errorf("expected 8 long-term records, got %d", stats.TotalRecords)
	}
	if stats.ShortTermSize != 5 {
		t.Errorf("expected short-term size 5, got %d", stats.ShortTermSize)
	}
}

func TestCache_RecentColdStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	emb := embedding.NewMockEmbedder(32)
	ctx := context.Background()

	c1, err := New(path, emb, nil, testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c1.Add(ctx, "bob", "conv1", models.RoleUser, fmt.Sprintf("turn %d", i), nil); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	c1.Close()

	// Fresh process: short-term tier is cold, Recent reads the database.
	c2, err := New(path, emb, nil, testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c2.Close()

	recent, err := c2.Recent(ctx, "bob", "conv1", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 turns from db, got %d", len(recent))
	}
	if recent[0].Content != "turn 1" || recent[1].Content != "turn 2" {
		t.Errorf("expected oldest-first ordering, got %q then %q", recent[0].Content, recent[1].Content)
	}
}

func TestCache_Relevant(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	turns := []string{
		"the deploy failed with a timeout",
		"lunch was great today",
		"remember: the database password rotates monthly",
	}
	for _, turn := range turns {
		if _, err := c.Add(ctx, "alice", "conv1", models.RoleUser, turn, nil); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	scored, err := c.Relevant(ctx, "alice", "the deploy failed with a timeout", 2, 0.0)
	if err != nil {
		t.Fatalf("Relevant failed: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 results, got %d", len(scored))
	}
	// The mock embedder is hash-based, so the identical text is the top hit.
	if scored[0].Record.Content != turns[0] {
		t.Errorf("expected exact turn as best match, got %q", scored[0].Record.Content)
	}
	if scored[0].Score < scored[1].Score {
		t.Error("results not sorted by score")
	}

	// A min-importance above every record filters everything out.
	none, err := c.Relevant(ctx, "alice", "anything", 5, 0.99)
	if err != nil {
		t.Fatalf("Relevant failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no results above importance 0.99, got %d", len(none))
	}
}

func TestCache_Compact(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	// Write turns across two calendar days, both older than the retention
	// window, by steering the cache clock.
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		day := i / 2
		c.now = func() time.Time { return base.AddDate(0, 0, day).Add(time.Duration(i) * time.Minute) }
		if _, err := c.Add(ctx, "alice", "conv1", models.RoleUser, fmt.Sprintf("old turn %d", i), nil); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	c.now = func() time.Time { return base.AddDate(0, 0, 30) }
	written, err := c.Compact(ctx, "alice")
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if written != 2 {
		t.Fatalf("expected 2 daily summaries, got %d", written)
	}

	stats, err := c.Stats(ctx, "alice")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	// 4 originals (now summarized) + 2 summary records.
	if stats.TotalRecords != 6 || stats.SummarizedRecords != 6 {
		t.Errorf("unexpected stats after compaction: %+v", stats)
	}

	// Compaction is idempotent.
	again, err := c.Compact(ctx, "alice")
	if err != nil {
		t.Fatalf("second Compact failed: %v", err)
	}
	if again != 0 {
		t.Errorf("expected idempotent compaction, got %d new summaries", again)
	}

	summaries, err := c.Summary(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summary records, got %d", len(summaries))
	}
	if summaries[0].Timestamp.After(summaries[1].Timestamp) {
		t.Error("summaries not ordered oldest first")
	}
	for _, s := range summaries {
		if s.Role != models.RoleSystem || !s.IsSummarized {
			t.Errorf("summary record has role=%s summarized=%v", s.Role, s.IsSummarized)
		}
		if !strings.HasPrefix(s.Content, "Summary of ") {
			t.Errorf("unexpected summary content %q", s.Content)
		}
	}

	// A window that predates the summaries returns nothing.
	old, err := c.Summary(ctx, "alice", 7)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("expected no summaries within 7 days of the steered clock, got %d", len(old))
	}
}

func TestCache_CompactBelowThreshold(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	for i := 0; i < 2; i++ {
		if _, err := c.Add(ctx, "alice", "conv1", models.RoleUser, fmt.Sprintf("turn %d", i), nil); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	c.now = func() time.Time { return base.AddDate(0, 0, 30) }

	written, err := c.Compact(ctx, "alice")
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if written != 0 {
		t.Errorf("expected no compaction below threshold, got %d", written)
	}
}

func TestCache_Purge(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, err := c.Add(ctx, "alice", "conv1", models.RoleUser, "keep me", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := c.Add(ctx, "bob", "conv1", models.RoleUser, "other user", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := c.Purge(ctx, "alice"); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	stats, _ := c.Stats(ctx, "alice")
	if stats.TotalRecords != 0 || stats.ShortTermSize != 0 {
		t.Errorf("expected empty memory for alice, got %+v", stats)
	}
	bobStats, _ := c.Stats(ctx, "bob")
	if bobStats.TotalRecords != 1 {
		t.Errorf("purge must not touch other users, got %+v", bobStats)
	}
}
