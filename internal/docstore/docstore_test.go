package docstore

import (
	"path/filepath"
	"testing"

	"github.com/hyperjump/oboeru/internal/models"
)

func sampleChunks() []models.Chunk {
	return []models.Chunk{
		{ID: "notes.txt::chunk_0", Source: "notes.txt", ChunkIndex: 0, Text: "first chunk", Metadata: map[string]string{"lang": "en"}},
		{ID: "notes.txt::chunk_1", Source: "notes.txt", ChunkIndex: 1, Text: "second chunk"},
		{ID: "guide.md::chunk_0", Source: "guide.md", ChunkIndex: 0, Text: "guide text"},
	}
}

func TestStore_AddGet(t *testing.T) {
	s := New()
	s.Add(sampleChunks())

	if s.Len() != 3 {
		t.Fatalf("expected 3 chunks, got %d", s.Len())
	}
	c, ok := s.Get("notes.txt::chunk_1")
	if !ok {
		t.Fatal("chunk not found")
	}
	if c.Source != "notes.txt" || c.ChunkIndex != 1 || c.Text != "second chunk" {
		t.Errorf("unexpected chunk: %+v", c)
	}

	c, ok = s.Get("notes.txt::chunk_0")
	if !ok {
		t.Fatal("chunk not found")
	}
	if c.Metadata["lang"] != "en" {
		t.Errorf("expected metadata preserved, got %v", c.Metadata)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestStore_AddDuplicateSkipped(t *testing.T) {
	s := New()
	s.Add(sampleChunks())
	s.Add(sampleChunks())
	if s.Len() != 3 {
		t.Fatalf("expected duplicates to be skipped, got %d chunks", s.Len())
	}
}

func TestStore_MatchSources(t *testing.T) {
	s := New()
	s.Add(sampleChunks())

	tests := []struct {
		name     string
		patterns []string
		want     int
	}{
		{"exact", []string{"guide.md"}, 1},
		{"prefix", []string{"notes*"}, 2},
		{"star only matches all", []string{"*"}, 3},
		{"no match", []string{"other.txt"}, 0},
		{"mixed", []string{"guide.md", "notes*"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.MatchSources(tt.patterns); len(got) != tt.want {
				t.Errorf("expected %d matches, got %d (%v)", tt.want, len(got), got)
			}
		})
	}
}

func TestStore_Remove(t *testing.T) {
	s := New()
	s.Add(sampleChunks())
	s.Remove([]string{"notes.txt::chunk_0", "notes.txt::chunk_1"})

	if s.Len() != 1 {
		t.Fatalf("expected 1 chunk, got %d", s.Len())
	}
	if _, ok := s.Get("guide.md::chunk_0"); !ok {
		t.Error("surviving chunk should still resolve")
	}
	if _, ok := s.Get("notes.txt::chunk_0"); ok {
		t.Error("removed chunk should not resolve")
	}
	if counts := s.Sources(); counts["notes.txt"] != 0 || counts["guide.md"] != 1 {
		t.Errorf("unexpected source counts: %v", counts)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")

	s := New()
	s.Add(sampleChunks())
	if err := s.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := New()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != s.Len() {
		t.Fatalf("expected %d chunks after load, got %d", s.Len(), loaded.Len())
	}
	c, ok := loaded.Get("notes.txt::chunk_0")
	if !ok {
		t.Fatal("chunk not found after load")
	}
	if c.Text != "first chunk" || c.Metadata["lang"] != "en" {
		t.Errorf("unexpected chunk after load: %+v", c)
	}

	texts := loaded.Texts()
	if len(texts) != 3 || texts[0] != "first chunk" {
		t.Errorf("unexpected texts order: %v", texts)
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := New()
	if err := s.Load(filepath.Join(t.TempDir(), "nope.json")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}
