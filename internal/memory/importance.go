package memory

import (
	"strings"

	"github.com/hyperjump/oboeru/internal/models"
)

// Keywords that mark a turn as worth remembering.
var importanceKeywords = []string{
	"important", "remember", "critical", "essential",
	"always", "never", "must", "key point",
}

// Metadata flags that raise importance when set to a truthy value.
var importanceFlags = []string{"important", "pinned", "goal", "decision"}

// ScoreImportance computes the heuristic importance of one conversational
// turn, in [0,1]:
//
//	base 0.5
//	+0.10 user turns (what the user says outweighs what we answered)
//	+0.10 content longer than 200 chars, +0.10 more beyond 500
//	+0.15 when an importance keyword appears
//	+0.10 per importance metadata flag
func ScoreImportance(role, content string, metadata map[string]string) float64 {
	score := 0.5
	if role == models.RoleUser {
		score += 0.1
	}
	if len(content) > 200 {
		score += 0.1
	}
	if len(content) > 500 {
		score += 0.1
	}
	lower := strings.ToLower(content)
	for _, kw := range importanceKeywords {
		if strings.Contains(lower, kw) {
			score += 0.15
			break
		}
	}
	for _, flag := range importanceFlags {
		if v, ok := metadata[flag]; ok && v != "" && v != "false" && v != "0" {
			score += 0.1
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
