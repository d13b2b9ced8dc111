package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/game-advisor/internal/domain/research"
)

// RunID identifier type
type RunID string

// Request is the immutable input for one analysis run. Owned by the
// caller, read-only for the pipeline.
type Request struct {
	Image             []byte
	ImageMIME         string
	Question          string
	Domain            string // subject area, e.g. "Warframe"
	RuleFiles         []string
	PreferredProvider string
}

// Priority enum
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// UnmarshalJSON parses a priority case-insensitively. Anything outside
// High/Medium/Low is an error, never a silent default.
func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		*p = PriorityHigh
	case "medium":
		*p = PriorityMedium
	case "low":
		*p = PriorityLow
	default:
		return fmt.Errorf("unknown priority %q", s)
	}
	return nil
}

// RecommendationItem is one prioritized action.
type RecommendationItem struct {
	Priority     Priority `json:"priority"`
	Action       string   `json:"action"`
	Reasoning    string   `json:"reasoning"`
	ReferenceURL string   `json:"reference_url,omitempty"`
	Context      string   `json:"context,omitempty"`
}

// Recommendation is the terminal artifact of a run.
type Recommendation struct {
	Analysis        string               `json:"analysis"`
	Summary         string               `json:"summary"`
	Recommendations []RecommendationItem `json:"recommendations"`
	Confidence      float64              `json:"confidence"` // 0..1
	ProviderUsed    string               `json:"provider_used"`
	GeneratedAt     time.Time            `json:"generated_at"`
	SearchResults   []research.Result    `json:"search_results,omitempty"`
}
