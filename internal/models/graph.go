package models

// NodeType classifies a knowledge graph node.
type NodeType string

// Knowledge graph node types.
const (
	NodeProblem NodeType = "problem"
	NodeTool    NodeType = "tool"
	NodeAction  NodeType = "action"
	NodeResult  NodeType = "result"
	NodeConcept NodeType = "concept"
)

// Knowledge graph relation types.
const (
	RelationRequires = "requires"
	RelationUses     = "uses"
	RelationProduces = "produces"
	RelationSolves   = "solves"
	RelationEnables  = "enables"
)

// KnowledgeNode is a typed node in the causal knowledge graph.
// Identity is the ID: re-adding a node with the same ID overwrites
// label, description, and metadata, never duplicates.
type KnowledgeNode struct {
	ID          string            `json:"id"`
	Type        NodeType          `json:"type"`
	Label       string            `json:"label"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// KnowledgeEdge is a weighted, evidence-bearing directed edge.
// At most one edge exists per (source, target, relation) triple.
type KnowledgeEdge struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Relation string   `json:"relation_type"`
	Weight   float64  `json:"weight"`
	Evidence []string `json:"evidence,omitempty"`
}

// PathStep is one hop in a solution path.
type PathStep struct {
	Step     int            `json:"step"`
	Node     *KnowledgeNode `json:"node"`
	Relation string         `json:"relation"`
	Type     NodeType       `json:"type"`
}

// SolutionPath is a ranked problem-to-result path through the graph.
type SolutionPath struct {
	Steps  []PathStep `json:"path"`
	Length int        `json:"length"`
	Score  float64    `json:"score"`
}

// Extraction is the set of nodes and edges a relation extractor pulled
// out of one document or experience record.
type Extraction struct {
	Nodes []KnowledgeNode `json:"nodes"`
	Edges []KnowledgeEdge `json:"edges"`
}

// GraphStats holds node and edge counts broken down by type.
type GraphStats struct {
	TotalNodes      int            `json:"total_nodes"`
	TotalEdges      int            `json:"total_edges"`
	NodesByType     map[string]int `json:"nodes_by_type"`
	EdgesByRelation map[string]int `json:"edges_by_relation"`
}
