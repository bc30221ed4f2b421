package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/graph"
	"github.com/hyperjump/oboeru/internal/llm"
	"github.com/hyperjump/oboeru/internal/models"
	"github.com/hyperjump/oboeru/pkg/utils"
)

const extractionSystemPrompt = `You extract a causal knowledge graph from text.
Node types: problem, tool, action, result, concept.
Relation types: requires, uses, produces, solves, enables.
Respond with JSON only, no prose, in this shape:
{"nodes":[{"type":"problem","label":"...","description":"..."}],
 "edges":[{"source":"<node label>","target":"<node label>","relation":"requires","weight":1.0}]}
Edges must reference node labels from the same response. Extract only what the text states.`

// llmExtraction is the wire shape the model is asked to produce; edges
// reference labels, which are resolved to content-addressed IDs afterwards.
type llmExtraction struct {
	Nodes []struct {
		Type        string `json:"type"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"nodes"`
	Edges []struct {
		Source   string  `json:"source"`
		Target   string  `json:"target"`
		Relation string  `json:"relation"`
		Weight   float64 `json:"weight"`
	} `json:"edges"`
}

var validNodeTypes = map[models.NodeType]bool{
	models.NodeProblem: true,
	models.NodeTool:    true,
	models.NodeAction:  true,
	models.NodeResult:  true,
	models.NodeConcept: true,
}

var validRelations = map[string]bool{
	models.RelationRequires: true,
	models.RelationUses:     true,
	models.RelationProduces: true,
	models.RelationSolves:   true,
	models.RelationEnables:  true,
}

// LLMExtractor asks the language model for a structured extraction and falls
// back to the pattern extractor when the model fails or returns junk.
type LLMExtractor struct {
	client   llm.Client
	fallback *PatternExtractor
	logger   *zap.Logger
}

// NewLLMExtractor builds the model-backed extractor.
func NewLLMExtractor(client llm.Client, logger *zap.Logger) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{
		client:   client,
		fallback: NewPatternExtractor(),
		logger:   logger,
	}
}

// FromText extracts nodes and edges from free text.
func (e *LLMExtractor) FromText(ctx context.Context, source, text string) (*models.Extraction, error) {
	prompt := "Extract the knowledge graph from this text:\n\n" + utils.Truncate(text, 6000)
	reply, err := e.client.Chat(ctx, extractionSystemPrompt, []llm.Message{
		{Role: models.RoleUser, Content: prompt},
	})
	if err == nil {
		if extraction, perr := parseExtraction(reply, source); perr == nil {
			return extraction, nil
		} else {
			err = perr
		}
	}
	e.logger.Warn("llm extraction failed, using pattern extractor", zap.Error(err))
	return e.fallback.FromText(ctx, source, text)
}

// FromExperience defers to the deterministic mapping; the structure is
// already explicit, so a model adds nothing but variance.
func (e *LLMExtractor) FromExperience(ctx context.Context, source string, exp models.Experience) (*models.Extraction, error) {
	return e.fallback.FromExperience(ctx, source, exp)
}

// parseExtraction decodes the model reply, tolerating markdown code fences,
// and resolves label references to node IDs. Edges naming unknown labels or
// invalid relations are dropped.
func parseExtraction(reply, source string) (*models.Extraction, error) {
	payload := strings.TrimSpace(reply)
	if start := strings.Index(payload, "{"); start > 0 {
		payload = payload[start:]
	}
	if end := strings.LastIndex(payload, "}"); end >= 0 {
		payload = payload[:end+1]
	}

	var wire llmExtraction
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, fmt.Errorf("parse extraction reply: %w", err)
	}

	extraction := &models.Extraction{}
	byLabel := make(map[string]string)
	for _, n := range wire.Nodes {
		nodeType := models.NodeType(strings.ToLower(n.Type))
		if !validNodeTypes[nodeType] || strings.TrimSpace(n.Label) == "" {
			continue
		}
		label := strings.TrimSpace(n.Label)
		id := graph.NodeID(nodeType, label)
		if _, seen := byLabel[strings.ToLower(label)]; !seen {
			extraction.Nodes = append(extraction.Nodes, models.KnowledgeNode{
				ID:          id,
				Type:        nodeType,
				Label:       label,
				Description: strings.TrimSpace(n.Description),
			})
			byLabel[strings.ToLower(label)] = id
		}
	}
	for _, edge := range wire.Edges {
		sourceID, okS := byLabel[strings.ToLower(strings.TrimSpace(edge.Source))]
		targetID, okT := byLabel[strings.ToLower(strings.TrimSpace(edge.Target))]
		relation := strings.ToLower(strings.TrimSpace(edge.Relation))
		if !okS || !okT || !validRelations[relation] {
			continue
		}
		weight := edge.Weight
		if weight <= 0 {
			weight = 1.0
		}
		extraction.Edges = append(extraction.Edges, models.KnowledgeEdge{
			Source:   sourceID,
			Target:   targetID,
			Relation: relation,
			Weight:   weight,
			Evidence: []string{source},
		})
	}
	return extraction, nil
}
