package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/hyperjump/oboeru/internal/graph"
	"github.com/hyperjump/oboeru/internal/models"
)

// PatternExtractor is the model-free extractor: English surface patterns for
// causal statements. Precision over recall; a sentence that matches nothing
// contributes nothing.
type PatternExtractor struct {
	requires *regexp.Regexp
	solves   *regexp.Regexp
	produces *regexp.Regexp
	uses     *regexp.Regexp
}

// NewPatternExtractor compiles the pattern set.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{
		requires: regexp.MustCompile(`(?i)^(.+?)\s+(?:requires|needs|depends on)\s+(.+)$`),
		solves:   regexp.MustCompile(`(?i)^(.+?)\s+(?:solves|fixes|resolves)\s+(.+)$`),
		produces: regexp.MustCompile(`(?i)^(.+?)\s+(?:produces|results in|leads to|yields)\s+(.+)$`),
		uses:     regexp.MustCompile(`(?i)^(.+?)\s+(?:uses|relies on|is done with)\s+(.+)$`),
	}
}

// FromText scans sentence by sentence for causal patterns.
func (p *PatternExtractor) FromText(ctx context.Context, source, text string) (*models.Extraction, error) {
	extraction := &models.Extraction{}
	for _, sentence := range splitSentences(text) {
		switch {
		case p.match(extraction, p.requires, sentence, source,
			models.NodeProblem, models.NodeAction, models.RelationRequires):
		case p.match(extraction, p.solves, sentence, source,
			models.NodeAction, models.NodeProblem, models.RelationSolves):
		case p.match(extraction, p.produces, sentence, source,
			models.NodeAction, models.NodeResult, models.RelationProduces):
		case p.match(extraction, p.uses, sentence, source,
			models.NodeAction, models.NodeTool, models.RelationUses):
		}
	}
	return extraction, nil
}

// match tries one pattern against a sentence and, on a hit, appends both
// endpoint nodes and the connecting edge. Returns whether it matched.
func (p *PatternExtractor) match(extraction *models.Extraction, re *regexp.Regexp, sentence, source string,
	leftType, rightType models.NodeType, relation string) bool {
	m := re.FindStringSubmatch(sentence)
	if m == nil {
		return false
	}
	left := cleanLabel(m[1])
	right := cleanLabel(m[2])
	if left == "" || right == "" {
		return false
	}
	leftID := addNode(extraction, leftType, left)
	rightID := addNode(extraction, rightType, right)
	extraction.Edges = append(extraction.Edges, models.KnowledgeEdge{
		Source:   leftID,
		Target:   rightID,
		Relation: relation,
		Weight:   1.0,
		Evidence: []string{source},
	})
	return true
}

// FromExperience maps a structured experience onto the graph: the title
// becomes a problem, the action plan becomes a chain of actions, and the
// chain terminates in a result node.
func (p *PatternExtractor) FromExperience(ctx context.Context, source string, exp models.Experience) (*models.Extraction, error) {
	extraction := &models.Extraction{}
	if exp.Title == "" {
		return extraction, nil
	}
	problemID := addNodeWithDescription(extraction, models.NodeProblem, exp.Title, exp.Context)

	prevID := problemID
	prevRelation := models.RelationRequires
	for _, action := range exp.ActionPlan {
		label := cleanLabel(action)
		if label == "" {
			continue
		}
		actionID := addNode(extraction, models.NodeAction, label)
		extraction.Edges = append(extraction.Edges, models.KnowledgeEdge{
			Source:   prevID,
			Target:   actionID,
			Relation: prevRelation,
			Weight:   1.0,
			Evidence: []string{source},
		})
		prevID = actionID
		prevRelation = models.RelationEnables
	}

	if prevID != problemID {
		resultID := addNode(extraction, models.NodeResult, exp.Title+" completed")
		extraction.Edges = append(extraction.Edges, models.KnowledgeEdge{
			Source:   prevID,
			Target:   resultID,
			Relation: models.RelationProduces,
			Weight:   1.0,
			Evidence: []string{source},
		})
	}
	return extraction, nil
}

func addNode(extraction *models.Extraction, nodeType models.NodeType, label string) string {
	return addNodeWithDescription(extraction, nodeType, label, "")
}

func addNodeWithDescription(extraction *models.Extraction, nodeType models.NodeType, label, description string) string {
	id := graph.NodeID(nodeType, label)
	for _, existing := range extraction.Nodes {
		if existing.ID == id {
			return id
		}
	}
	extraction.Nodes = append(extraction.Nodes, models.KnowledgeNode{
		ID:          id,
		Type:        nodeType,
		Label:       label,
		Description: description,
	})
	return id
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`+"`")
	s = strings.TrimPrefix(s, "the ")
	s = strings.TrimPrefix(s, "The ")
	s = strings.TrimPrefix(s, "a ")
	s = strings.TrimPrefix(s, "A ")
	if len(s) > 120 {
		return ""
	}
	return strings.TrimSpace(s)
}
