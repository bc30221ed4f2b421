// Package ingest turns raw documents and experiences into indexable chunks.
package ingest

import (
	"fmt"
	"strings"

	"github.com/hyperjump/oboeru/internal/models"
)

// Default chunking parameters, applied when a caller passes non-positive values.
const (
	DefaultChunkChars   = 800
	DefaultChunkOverlap = 150
)

// ChunkText splits text into character windows of at most maxChars with the
// given overlap between consecutive windows. Whitespace-only windows are
// dropped. Text shorter than maxChars yields a single chunk.
func ChunkText(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		maxChars = DefaultChunkChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = DefaultChunkOverlap
		if overlap >= maxChars {
			overlap = maxChars / 4
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}

	step := maxChars - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkID returns the canonical ID for the nth chunk of a source.
func ChunkID(source string, n int) string {
	return fmt.Sprintf("%s::chunk_%d", source, n)
}

// PrepareDocuments chunks raw documents into indexable chunks with stable
// per-source IDs. Extra document metadata is carried onto every chunk.
func PrepareDocuments(docs []models.RawDocument, maxChars, overlap int) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		for i, text := range ChunkText(doc.Text, maxChars, overlap) {
			meta := make(map[string]string, len(doc.Extra))
			for k, v := range doc.Extra {
				meta[k] = v
			}
			chunks = append(chunks, models.Chunk{
				ID:         ChunkID(doc.Source, i),
				Source:     doc.Source,
				ChunkIndex: i,
				Text:       text,
				Metadata:   meta,
			})
		}
	}
	return chunks
}
