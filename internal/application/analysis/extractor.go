package analysis

import (
	"encoding/json"
	"strings"

	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
)

// Extract decodes raw model output into a Recommendation. The input is
// expected to be a single JSON object; one syntactic repair pass (code
// fences stripped, text outside the outermost braces dropped) is
// applied before parsing. There is no second model call here — a
// malformed payload is the caller's problem, surfaced with the raw
// text attached.
func Extract(raw string) (*domain.Recommendation, error) {
	cleaned := repair(raw)
	if cleaned == "" {
		return nil, &domain.ExtractionError{Raw: raw, Err: errEmptyOutput}
	}

	var rec domain.Recommendation
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return nil, &domain.ExtractionError{Raw: raw, Err: err}
	}

	if rec.Recommendations == nil {
		rec.Recommendations = []domain.RecommendationItem{}
	}
	if rec.Confidence < 0 {
		rec.Confidence = 0
	}
	if rec.Confidence > 1 {
		rec.Confidence = 1
	}
	return &rec, nil
}

var errEmptyOutput = jsonError("empty model output")

type jsonError string

func (e jsonError) Error() string { return string(e) }

// repair strips markdown fences and anything outside the outermost
// JSON object. Models wrap output in ```json blocks often enough that
// rejecting those outright would fail perfectly good answers.
func repair(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
