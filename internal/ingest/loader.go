package ingest

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/oboeru/internal/models"
)

// LoadTextFile reads a plain-text file into a raw document. The source is the
// file's base name.
func LoadTextFile(path string) (models.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	return models.RawDocument{
		Source: filepath.Base(path),
		Text:   string(data),
		Extra:  map[string]string{"path": path},
	}, nil
}

// LoadCSV reads a CSV file into a raw document, rendering each row as
// "header: value" pairs so that column context survives chunking.
func LoadCSV(path string) (models.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("parse %s: %w", path, err)
	}

	var b strings.Builder
	var header []string
	for i, row := range rows {
		if i == 0 {
			header = row
			continue
		}
		parts := make([]string, 0, len(row))
		for j, cell := range row {
			if j < len(header) && header[j] != "" {
				parts = append(parts, fmt.Sprintf("%s: %s", header[j], cell))
			} else {
				parts = append(parts, cell)
			}
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	return models.RawDocument{
		Source: filepath.Base(path),
		Text:   b.String(),
		Extra:  map[string]string{"path": path},
	}, nil
}

// LoadFile dispatches on extension. Unsupported extensions return an error.
func LoadFile(path string) (models.RawDocument, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".txt", ".md", ".log":
		return LoadTextFile(path)
	default:
		return models.RawDocument{}, fmt.Errorf("unsupported file type: %s", path)
	}
}

// LoadDirectory walks dir and loads every file whose extension is in
// extensions (e.g. [".txt", ".csv"]). Unreadable files are skipped with an
// aggregate error only if nothing loaded.
func LoadDirectory(dir string, extensions []string) ([]models.RawDocument, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var docs []models.RawDocument
	var firstErr error
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		doc, err := LoadFile(path)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	if len(docs) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return docs, nil
}
