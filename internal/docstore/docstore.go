// Package docstore holds chunk texts and metadata alongside the vector index.
// The index stores only IDs and vectors; this store maps IDs back to content.
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hyperjump/oboeru/internal/models"
)

// Store keeps chunks in parallel arrays (ids, texts, metadatas) in insertion
// order, mirroring the layout persisted in the JSON sidecar. An id->position
// map serves lookups.
type Store struct {
	ids       []string
	texts     []string
	metadatas []map[string]string
	pos       map[string]int
	mu        sync.RWMutex
}

// New creates an empty document store.
func New() *Store {
	return &Store{
		ids:       make([]string, 0),
		texts:     make([]string, 0),
		metadatas: make([]map[string]string, 0),
		pos:       make(map[string]int),
	}
}

// Add appends chunks. A chunk whose ID is already present is skipped, so
// re-ingesting a source is idempotent at the store level.
func (s *Store) Add(chunks []models.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if _, exists := s.pos[c.ID]; exists {
			continue
		}
		meta := make(map[string]string, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta["source"] = c.Source
		meta["chunk_index"] = strconv.Itoa(c.ChunkIndex)
		s.pos[c.ID] = len(s.ids)
		s.ids = append(s.ids, c.ID)
		s.texts = append(s.texts, c.Text)
		s.metadatas = append(s.metadatas, meta)
	}
}

// Get returns the chunk with the given ID.
func (s *Store) Get(id string) (models.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.pos[id]
	if !ok {
		return models.Chunk{}, false
	}
	return s.chunkAt(i), true
}

// chunkAt rebuilds a Chunk from the parallel arrays. Callers hold the lock.
func (s *Store) chunkAt(i int) models.Chunk {
	meta := s.metadatas[i]
	chunkIndex, _ := strconv.Atoi(meta["chunk_index"])
	extra := make(map[string]string, len(meta))
	for k, v := range meta {
		if k == "source" || k == "chunk_index" {
			continue
		}
		extra[k] = v
	}
	return models.Chunk{
		ID:         s.ids[i],
		Source:     meta["source"],
		ChunkIndex: chunkIndex,
		Text:       s.texts[i],
		Metadata:   extra,
	}
}

// Texts returns all chunk texts in insertion order. Used to refit
// corpus-dependent embedding backends on the full corpus.
func (s *Store) Texts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

// IDs returns all chunk IDs in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// All returns every chunk in insertion order.
func (s *Store) All() []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chunk, len(s.ids))
	for i := range s.ids {
		out[i] = s.chunkAt(i)
	}
	return out
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Sources returns the number of chunks per source.
func (s *Store) Sources() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, meta := range s.metadatas {
		counts[meta["source"]]++
	}
	return counts
}

// MatchSources returns the IDs of chunks whose source matches any of the
// given patterns. A pattern ending in '*' matches sources by prefix; any
// other pattern matches exactly.
func (s *Store) MatchSources(patterns []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []string
	for i, meta := range s.metadatas {
		if matchesAny(meta["source"], patterns) {
			matched = append(matched, s.ids[i])
		}
	}
	return matched
}

func matchesAny(source string, patterns []string) bool {
	for _, p := range patterns {
		if strings.HasSuffix(p, "*") {
			if strings.HasPrefix(source, strings.TrimSuffix(p, "*")) {
				return true
			}
		} else if source == p {
			return true
		}
	}
	return false
}

// Remove deletes chunks by ID, rebuilding the parallel arrays.
func (s *Store) Remove(ids []string) {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	newIDs := make([]string, 0, len(s.ids))
	newTexts := make([]string, 0, len(s.texts))
	newMetas := make([]map[string]string, 0, len(s.metadatas))
	newPos := make(map[string]int)
	for i, id := range s.ids {
		if removeSet[id] {
			continue
		}
		newPos[id] = len(newIDs)
		newIDs = append(newIDs, id)
		newTexts = append(newTexts, s.texts[i])
		newMetas = append(newMetas, s.metadatas[i])
	}
	s.ids = newIDs
	s.texts = newTexts
	s.metadatas = newMetas
	s.pos = newPos
}

// sidecar is the on-disk JSON layout.
type sidecar struct {
	IDs       []string            `json:"ids"`
	Texts     []string            `json:"texts"`
	Metadatas []map[string]string `json:"metadatas"`
}

// Save writes the store to a JSON sidecar file at path.
func (s *Store) Save(path string) error {
	if path == "" {
		return nil
	}
	s.mu.RLock()
	data, err := json.Marshal(sidecar{IDs: s.ids, Texts: s.texts, Metadatas: s.metadatas})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal corpus: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write corpus file: %w", err)
	}
	return nil
}

// Load replaces the store contents from a JSON sidecar file. A missing file
// is not an error; the store is left unchanged.
func (s *Store) Load(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read corpus file: %w", err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("parse corpus file: %w", err)
	}
	if len(sc.IDs) != len(sc.Texts) || len(sc.IDs) != len(sc.Metadatas) {
		return fmt.Errorf("corrupt corpus file: array lengths differ")
	}
	pos := make(map[string]int, len(sc.IDs))
	for i, id := range sc.IDs {
		pos[id] = i
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = sc.IDs
	s.texts = sc.Texts
	s.metadatas = sc.Metadatas
	s.pos = pos
	return nil
}
