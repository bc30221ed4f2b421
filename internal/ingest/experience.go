package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/oboeru/internal/models"
)

// Metadata keys attached to chunks flattened from experiences.
const (
	MetaIsExperience   = "is_experience"
	MetaExperienceJSON = "experience_json"
)

// FlattenExperience renders a structured experience as a text document so it
// can be chunked and embedded like any other source. The full structure is
// kept as JSON in the metadata so retrieval can project it back.
func FlattenExperience(exp models.Experience) (models.RawDocument, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "EXPERIENCE: %s\n", exp.Title)
	if exp.Context != "" {
		fmt.Fprintf(&b, "CONTEXT: %s\n", exp.Context)
	}
	if len(exp.SensoryData) > 0 {
		keys := make([]string, 0, len(exp.SensoryData))
		for k := range exp.SensoryData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, exp.SensoryData[k])
		}
		fmt.Fprintf(&b, "SENSORY: %s\n", strings.Join(parts, "; "))
	}
	if len(exp.ActionPlan) > 0 {
		b.WriteString("ACTIONS:\n")
		for i, action := range exp.ActionPlan {
			fmt.Fprintf(&b, "%d. %s\n", i+1, action)
		}
	}

	raw, err := json.Marshal(exp)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("marshal experience: %w", err)
	}
	return models.RawDocument{
		Source: "experience::" + exp.Title,
		Text:   b.String(),
		Extra: map[string]string{
			MetaIsExperience:   "true",
			MetaExperienceJSON: string(raw),
		},
	}, nil
}

// ProjectExperience reconstructs an experience from chunk metadata written by
// FlattenExperience. Returns nil when the chunk did not come from one.
func ProjectExperience(metadata map[string]string) *models.Experience {
	if metadata[MetaIsExperience] != "true" {
		return nil
	}
	raw, ok := metadata[MetaExperienceJSON]
	if !ok {
		return nil
	}
	var exp models.Experience
	if err := json.Unmarshal([]byte(raw), &exp); err != nil {
		return nil
	}
	return &exp
}
