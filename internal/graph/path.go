package graph

import (
	"sort"
	"strings"

	"github.com/hyperjump/oboeru/internal/models"
)

const (
	defaultMaxPathDepth = 4
	maxCollectedPaths   = 64
	maxReturnedPaths    = 5
)

// FindSolutionPath searches for causal paths from problem nodes matching the
// query to result nodes. Action and tool neighbors are explored first, since
// they are the hops that actually advance a solution. Cycle avoidance is
// per-branch: an edge may appear in many paths but never twice in one.
// A branch succeeds only when it reaches a result node; anything else is
// abandoned, not reported. maxDepth bounds the number of hops (<= 0 selects
// the default of 4). Paths are scored by type diversity, penalized for
// length beyond five hops, and the top five are returned.
func (g *Graph) FindSolutionPath(problemQuery string, maxDepth int) []models.SolutionPath {
	if maxDepth <= 0 {
		maxDepth = defaultMaxPathDepth
	}

	problems := g.FindNodes(problemQuery, models.NodeProblem)
	if len(problems) == 0 {
		// Free-form questions rarely contain a node label verbatim; fall
		// back to token overlap against the problem labels.
		problems = g.matchProblemsByTokens(problemQuery)
	}
	if len(problems) == 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var collected []models.SolutionPath
	for _, problem := range problems {
		start := []models.PathStep{{
			Step: 0,
			Node: problem,
			Type: problem.Type,
		}}
		g.dfs(problem.ID, start, make(map[edgeKey]bool), maxDepth, &collected)
		if len(collected) >= maxCollectedPaths {
			break
		}
	}

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].Score > collected[j].Score
	})
	if len(collected) > maxReturnedPaths {
		collected = collected[:maxReturnedPaths]
	}
	return collected
}

type edgeKey struct {
	source, target, relation string
}

// matchProblemsByTokens returns problem nodes where at least half of the
// label's tokens appear in the query.
func (g *Graph) matchProblemsByTokens(query string) []*models.KnowledgeNode {
	queryTokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		queryTokens[tok] = true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	var matched []*models.KnowledgeNode
	for _, node := range g.nodes {
		if node.Type != models.NodeProblem {
			continue
		}
		labelTokens := strings.Fields(strings.ToLower(node.Label))
		if len(labelTokens) == 0 {
			continue
		}
		hits := 0
		for _, tok := range labelTokens {
			if queryTokens[tok] {
				hits++
			}
		}
		if hits*2 >= len(labelTokens) {
			copied := *node
			matched = append(matched, &copied)
		}
	}
	return matched
}

// dfs extends the current path from nodeID. Callers hold the read lock.
func (g *Graph) dfs(nodeID string, path []models.PathStep, visited map[edgeKey]bool, maxDepth int, collected *[]models.SolutionPath) {
	if len(*collected) >= maxCollectedPaths || len(path)-1 > maxDepth {
		return
	}

	// Only a result node terminates a branch successfully; dead ends are
	// abandoned. A single hop (problem -> result) is too thin to report.
	last := path[len(path)-1]
	if last.Type == models.NodeResult {
		if len(path) >= 2 {
			*collected = append(*collected, g.scorePath(path))
		}
		return
	}

	var outgoing []*models.KnowledgeEdge
	for _, relations := range g.edges[nodeID] {
		for _, edge := range relations {
			key := edgeKey{edge.Source, edge.Target, edge.Relation}
			if !visited[key] {
				outgoing = append(outgoing, edge)
			}
		}
	}
	if len(outgoing) == 0 {
		return
	}

	// Actions and tools first, then by weight.
	sort.SliceStable(outgoing, func(i, j int) bool {
		pi := g.hopPriority(outgoing[i].Target)
		pj := g.hopPriority(outgoing[j].Target)
		if pi != pj {
			return pi < pj
		}
		return outgoing[i].Weight > outgoing[j].Weight
	})

	for _, edge := range outgoing {
		target, ok := g.nodes[edge.Target]
		if !ok {
			continue
		}
		key := edgeKey{edge.Source, edge.Target, edge.Relation}
		visited[key] = true
		copied := *target
		next := append(path, models.PathStep{
			Step:     len(path),
			Node:     &copied,
			Relation: edge.Relation,
			Type:     target.Type,
		})
		g.dfs(edge.Target, next, visited, maxDepth, collected)
		delete(visited, key)
	}
}

func (g *Graph) hopPriority(nodeID string) int {
	node, ok := g.nodes[nodeID]
	if !ok {
		return 3
	}
	switch node.Type {
	case models.NodeAction:
		return 0
	case models.NodeTool:
		return 1
	default:
		return 2
	}
}

// scorePath ranks a path: base 1.0, +0.2 per distinct node type, -0.1 per hop
// beyond five, +0.5 for terminating at a result.
func (g *Graph) scorePath(path []models.PathStep) models.SolutionPath {
	types := make(map[models.NodeType]bool)
	for _, step := range path {
		types[step.Type] = true
	}
	score := 1.0 + 0.2*float64(len(types)) + 0.5
	if extra := len(path) - 5; extra > 0 {
		score -= 0.1 * float64(extra)
	}
	steps := make([]models.PathStep, len(path))
	copy(steps, path)
	return models.SolutionPath{
		Steps:  steps,
		Length: len(steps),
		Score:  score,
	}
}
