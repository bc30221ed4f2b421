// Package graph provides the SQLite-backed causal knowledge graph: typed
// nodes, weighted merged edges, and problem-to-result path search.
package graph

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/models"
)

// ErrNodeNotFound is returned when an edge references a node that does not exist.
var ErrNodeNotFound = errors.New("graph node not found")

// Direction selects which edges Related follows.
type Direction string

// Traversal directions.
const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// NodeID derives a content-addressed node ID from type and label, so the same
// concept extracted twice from different documents lands on the same node.
func NodeID(nodeType models.NodeType, label string) string {
	normalized := string(nodeType) + "\x00" + strings.Join(strings.Fields(strings.ToLower(label)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// Graph is the durable knowledge graph. Every mutation writes through to
// SQLite and updates an in-memory mirror used for traversal, guarded by a
// single RWMutex.
type Graph struct {
	db     *sql.DB
	logger *zap.Logger

	mu    sync.RWMutex
	nodes map[string]*models.KnowledgeNode
	// edges is keyed by source -> target -> relation.
	edges map[string]map[string]map[string]*models.KnowledgeEdge
	// incoming mirrors edges reversed, target -> sources, for DirIn traversal.
	incoming map[string]map[string]bool
}

// Open opens (or creates) the graph database at dbPath and loads the full
// graph into memory.
func Open(dbPath string, logger *zap.Logger) (*Graph, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create graph db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize graph schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Graph{
		db:       db,
		logger:   logger,
		nodes:    make(map[string]*models.KnowledgeNode),
		edges:    make(map[string]map[string]map[string]*models.KnowledgeEdge),
		incoming: make(map[string]map[string]bool),
	}
	if err := g.loadAll(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return g, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		node_type TEXT NOT NULL,
		label TEXT NOT NULL,
		description TEXT,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);

	CREATE TABLE IF NOT EXISTS edges (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relation_type TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 1.0,
		evidence TEXT,
		PRIMARY KEY (source_id, target_id, relation_type),
		FOREIGN KEY (source_id) REFERENCES nodes(id),
		FOREIGN KEY (target_id) REFERENCES nodes(id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	CREATE INDEX IF NOT EXISTS idx_edges_relation ON edges(relation_type);
	`
	_, err := db.Exec(schema)
	return err
}

func (g *Graph) loadAll(ctx context.Context) error {
	rows, err := g.db.QueryContext(ctx, `SELECT id, node_type, label, description, metadata FROM nodes`)
	if err != nil {
		return fmt.Errorf("failed to load nodes: %w", err)
	}
	for rows.Next() {
		var node models.KnowledgeNode
		var desc, metadataJSON sql.NullString
		if err := rows.Scan(&node.ID, &node.Type, &node.Label, &desc, &metadataJSON); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan node: %w", err)
		}
		node.Description = desc.String
		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			_ = json.Unmarshal([]byte(metadataJSON.String), &node.Metadata)
		}
		g.nodes[node.ID] = &node
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	edgeRows, err := g.db.QueryContext(ctx, `SELECT source_id, target_id, relation_type, weight, evidence FROM edges`)
	if err != nil {
		return fmt.Errorf("failed to load edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var edge models.KnowledgeEdge
		var evidenceJSON sql.NullString
		if err := edgeRows.Scan(&edge.Source, &edge.Target, &edge.Relation, &edge.Weight, &evidenceJSON); err != nil {
			return fmt.Errorf("failed to scan edge: %w", err)
		}
		if evidenceJSON.Valid && evidenceJSON.String != "" && evidenceJSON.String != "null" {
			_ = json.Unmarshal([]byte(evidenceJSON.String), &edge.Evidence)
		}
		g.indexEdge(&edge)
	}
	return edgeRows.Err()
}

// indexEdge puts an edge into the in-memory mirror. Callers hold the write
// lock (or run during single-threaded load).
func (g *Graph) indexEdge(edge *models.KnowledgeEdge) {
	if g.edges[edge.Source] == nil {
		g.edges[edge.Source] = make(map[string]map[string]*models.KnowledgeEdge)
	}
	if g.edges[edge.Source][edge.Target] == nil {
		g.edges[edge.Source][edge.Target] = make(map[string]*models.KnowledgeEdge)
	}
	g.edges[edge.Source][edge.Target][edge.Relation] = edge
	if g.incoming[edge.Target] == nil {
		g.incoming[edge.Target] = make(map[string]bool)
	}
	g.incoming[edge.Target][edge.Source] = true
}

// AddNode inserts or updates a node. When the node's ID is empty it is
// derived from type and label, merging re-extractions of the same concept.
func (g *Graph) AddNode(ctx context.Context, node models.KnowledgeNode) (string, error) {
	if node.ID == "" {
		node.ID = NodeID(node.Type, node.Label)
	}
	metadataJSON, err := json.Marshal(node.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal node metadata: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	_, err = g.db.ExecContext(ctx,
		`INSERT INTO nodes (id, node_type, label, description, metadata)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   label = excluded.label,
		   description = excluded.description,
		   metadata = excluded.metadata`,
		node.ID, string(node.Type), node.Label, node.Description, string(metadataJSON))
	if err != nil {
		return "", fmt.Errorf("failed to upsert node: %w", err)
	}
	stored := node
	g.nodes[node.ID] = &stored
	return node.ID, nil
}

// AddEdge inserts or merges a directed edge. Both endpoints must exist.
// When an edge with the same (source, target, relation) exists, only a
// strictly higher weight updates it, unioning the evidence; a lower or
// equal weight is a no-op.
func (g *Graph) AddEdge(ctx context.Context, edge models.KnowledgeEdge) error {
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[edge.Source]; !ok {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, edge.Source)
	}
	if _, ok := g.nodes[edge.Target]; !ok {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, edge.Target)
	}

	merged := edge
	if existing := g.lookupEdge(edge.Source, edge.Target, edge.Relation); existing != nil {
		if edge.Weight <= existing.Weight {
			return nil
		}
		merged = *existing
		merged.Weight = edge.Weight
		merged.Evidence = unionEvidence(existing.Evidence, edge.Evidence)
	}

	evidenceJSON, err := json.Marshal(merged.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}
	_, err = g.db.ExecContext(ctx,
		`INSERT INTO edges (source_id, target_id, relation_type, weight, evidence)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id, relation_type) DO UPDATE SET
		   weight = excluded.weight,
		   evidence = excluded.evidence`,
		merged.Source, merged.Target, merged.Relation, merged.Weight, string(evidenceJSON))
	if err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}
	g.indexEdge(&merged)
	return nil
}

func (g *Graph) lookupEdge(source, target, relation string) *models.KnowledgeEdge {
	if targets, ok := g.edges[source]; ok {
		if relations, ok := targets[target]; ok {
			return relations[relation]
		}
	}
	return nil
}

func unionEvidence(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, e := range a {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	for _, e := range b {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*models.KnowledgeNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	copied := *node
	return &copied, true
}

// FindNodes returns nodes whose label contains the query (case-insensitive),
// optionally restricted to a node type. An empty type matches all.
func (g *Graph) FindNodes(query string, nodeType models.NodeType) []*models.KnowledgeNode {
	lowered := strings.ToLower(query)
	g.mu.RLock()
	defer g.mu.RUnlock()
	var found []*models.KnowledgeNode
	for _, node := range g.nodes {
		if nodeType != "" && node.Type != nodeType {
			continue
		}
		if lowered != "" && !strings.Contains(strings.ToLower(node.Label), lowered) {
			continue
		}
		copied := *node
		found = append(found, &copied)
	}
	return found
}

// Related returns the edges touching a node in the given direction.
func (g *Graph) Related(id string, dir Direction) []models.KnowledgeEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []models.KnowledgeEdge
	if dir == DirOut || dir == DirBoth {
		for _, relations := range g.edges[id] {
			for _, edge := range relations {
				out = append(out, *edge)
			}
		}
	}
	if dir == DirIn || dir == DirBoth {
		for source := range g.incoming[id] {
			for _, edge := range g.edges[source][id] {
				out = append(out, *edge)
			}
		}
	}
	return out
}

// Stats returns node and edge counts by type.
func (g *Graph) Stats() *models.GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	stats := &models.GraphStats{
		NodesByType:     make(map[string]int),
		EdgesByRelation: make(map[string]int),
	}
	for _, node := range g.nodes {
		stats.TotalNodes++
		stats.NodesByType[string(node.Type)]++
	}
	for _, targets := range g.edges {
		for _, relations := range targets {
			for _, edge := range relations {
				stats.TotalEdges++
				stats.EdgesByRelation[edge.Relation]++
			}
		}
	}
	return stats
}

// ExportJSON writes the whole graph as a single JSON document.
func (g *Graph) ExportJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	export := models.Extraction{
		Nodes: make([]models.KnowledgeNode, 0, len(g.nodes)),
	}
	for _, node := range g.nodes {
		export.Nodes = append(export.Nodes, *node)
	}
	for _, targets := range g.edges {
		for _, relations := range targets {
			for _, edge := range relations {
				export.Edges = append(export.Edges, *edge)
			}
		}
	}
	return json.MarshalIndent(export, "", "  ")
}

// Close closes the underlying database.
func (g *Graph) Close() error {
	return g.db.Close()
}
