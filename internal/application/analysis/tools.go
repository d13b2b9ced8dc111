package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bryanwahyu/game-advisor/internal/domain/ai"
	"github.com/bryanwahyu/game-advisor/internal/domain/research"
)

const (
	toolSearchWeb   = "search_web"
	toolReadArticle = "read_article"

	toolSearchResults   = 5
	articleContentLimit = 12000 // runes handed back to the model per article
)

// researchTools builds the two callable functions the direct strategy
// exposes. Results flowing through the tools land in the collector so
// the final Recommendation can list its sources.
func (s *Service) researchTools(collector *resultCollector) []ai.Tool {
	return []ai.Tool{
		{
			Name:        toolSearchWeb,
			Description: "Search the web and return a short digest of the top results (title, url, snippet). Social media is excluded.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search for",
					},
				},
				"required": []string{"query"},
			},
			Run: func(ctx context.Context, arguments string) (string, error) {
				var args struct {
					Query string `json:"query"`
				}
				if err := json.Unmarshal([]byte(arguments), &args); err != nil {
					return "", fmt.Errorf("bad search_web arguments: %w", err)
				}
				hits, err := s.Research.Searcher.Search(ctx, args.Query, toolSearchResults)
				if err != nil {
					return "", err
				}
				if len(hits) == 0 {
					return "No results.", nil
				}
				var b strings.Builder
				for _, h := range hits {
					fmt.Fprintf(&b, "- %s (%s)\n  %s\n", h.Title, h.URL, h.Snippet)
					collector.addResults([]research.Result{{Title: h.Title, URL: h.URL, Content: h.Snippet}})
				}
				return b.String(), nil
			},
		},
		{
			Name:        toolReadArticle,
			Description: "Fetch one article URL and return its normalized plain text.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "Absolute http(s) URL of the article",
					},
				},
				"required": []string{"url"},
			},
			Run: func(ctx context.Context, arguments string) (string, error) {
				var args struct {
					URL string `json:"url"`
				}
				if err := json.Unmarshal([]byte(arguments), &args); err != nil {
					return "", fmt.Errorf("bad read_article arguments: %w", err)
				}
				text, err := s.Research.ReadArticle(ctx, args.URL)
				if err != nil {
					return "", err
				}
				text = truncateRunes(text, articleContentLimit)
				collector.upsert(research.Result{Title: args.URL, URL: args.URL, Content: text})
				return text, nil
			},
		},
	}
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// resultCollector gathers the research actually performed during a run
// (prefetched or model-invoked) for traceability. Guarded because tool
// handlers run inside the provider adapter.
type resultCollector struct {
	mu   sync.Mutex
	list []research.Result
}

func newResultCollector() *resultCollector {
	return &resultCollector{}
}

func (c *resultCollector) addResults(rs []research.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, rs...)
}

// upsert replaces an entry with the same URL (a snippet becoming a full
// article read) or appends.
func (c *resultCollector) upsert(r research.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.list {
		if c.list[i].URL == r.URL {
			if c.list[i].Title != "" {
				r.Title = c.list[i].Title
			}
			c.list[i] = r
			return
		}
	}
	c.list = append(c.list, r)
}

func (c *resultCollector) results() []research.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]research.Result, len(c.list))
	copy(out, c.list)
	return out
}
