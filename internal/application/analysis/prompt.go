package analysis

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/game-advisor/internal/domain/research"
	"github.com/bryanwahyu/game-advisor/internal/domain/rules"
)

// systemPrompt provides strict directions and the schema for JSON output.
const systemPrompt = `You are a senior %s advisor. The user sends a screenshot of their current in-game state plus a question. Analyze the image and the question and produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- Output must be a single JSON object.
- priority must be one of: High, Medium, Low.
- confidence is a number between 0 and 1.
- recommendations is an array ordered by priority; keep each item concise and actionable.

Schema (example with empty values):
{
  "analysis": "<string>",
  "summary": "<string>",
  "recommendations": [
    {
      "priority": "<High|Medium|Low>",
      "action": "<string>",
      "reasoning": "<string>",
      "reference_url": "<string, optional>",
      "context": "<string, optional>"
    }
  ],
  "confidence": 0.0
}`

const delegatedGuidance = `Use your built-in web search to look up current %s guides, patch notes and tier lists before answering. Cite the pages you used via reference_url. Never rely on social media posts.`

// buildSystemPrompt assembles role + domain rules + optional research
// block into the final system message.
func buildSystemPrompt(gameDomain string, ruleList []rules.Rule, results []research.Result, delegated bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, systemPrompt, gameDomain)

	if delegated {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, delegatedGuidance, gameDomain)
	}

	if len(ruleList) > 0 {
		b.WriteString("\n\nDomain rules you must respect:\n")
		b.WriteString(RenderRules(ruleList))
	}

	if len(results) > 0 {
		b.WriteString("\n\nResearch findings (use these as your sources):\n")
		for _, r := range results {
			fmt.Fprintf(&b, "\n### %s\nSource: %s\n%s\n", r.Title, r.URL, r.Content)
		}
	}

	return b.String()
}

// RenderRules formats a rule hierarchy grouped by category as an
// indented bullet list. Children render one level deeper than their
// parent.
func RenderRules(list []rules.Rule) string {
	byCategory := map[string][]rules.Rule{}
	var order []string
	for _, r := range list {
		cat := r.Category
		if cat == "" {
			cat = "General"
		}
		if _, ok := byCategory[cat]; !ok {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], r)
	}

	var b strings.Builder
	for _, cat := range order {
		fmt.Fprintf(&b, "%s:\n", cat)
		for _, r := range byCategory[cat] {
			renderRule(&b, r, 1)
		}
	}
	return b.String()
}

func renderRule(b *strings.Builder, r rules.Rule, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("- ")
	b.WriteString(r.Text)
	b.WriteString("\n")
	for _, c := range r.Children {
		renderRule(b, c, depth+1)
	}
}
