package research

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bryanwahyu/game-advisor/internal/domain/analysis"
	"github.com/bryanwahyu/game-advisor/internal/domain/progress"
	domain "github.com/bryanwahyu/game-advisor/internal/domain/research"
)

const (
	// JobTagSearch is the tag of the single search job per run.
	JobTagSearch = "web-search"

	defaultMaxResults = 10
)

// sites that should never show up as research sources
var excludedSites = []string{
	"reddit.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
}

// Service implements the bounded research pass: one search, then a
// sequential fetch+normalize per hit. Sequential on purpose, biar gak
// membanjiri situs pihak ketiga.
type Service struct {
	Searcher   domain.Searcher
	Fetcher    domain.Fetcher
	Normalizer domain.Normalizer
	MaxResults int
}

// BuildQuery combines the domain and question into the fixed search
// template, excluding social media sources.
func BuildQuery(gameDomain, question string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(gameDomain))
	b.WriteString(" ")
	b.WriteString(strings.TrimSpace(question))
	for _, site := range excludedSites {
		b.WriteString(" -site:")
		b.WriteString(site)
	}
	return b.String()
}

// Perform runs the research pipeline and reports jobs on the tracker.
// A search failure is fatal; a per-article failure only drops that
// article. Cancellation is checked between articles.
func (s *Service) Perform(ctx context.Context, gameDomain, question string, mode domain.Mode, tracker *progress.Tracker) ([]domain.Result, error) {
	maxResults := s.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	tracker.UpdateJob(JobTagSearch, "Web search", progress.StatusPending, 0)
	tracker.UpdateJob(JobTagSearch, "Web search", progress.StatusInProgress, 25)

	hits, err := s.Searcher.Search(ctx, BuildQuery(gameDomain, question), maxResults)
	if err != nil {
		tracker.UpdateJob(JobTagSearch, "Web search", progress.StatusFailed, 100)
		return nil, fmt.Errorf("web search: %w", err)
	}
	tracker.UpdateJob(JobTagSearch, "Web search", progress.StatusCompleted, 100)

	if len(hits) == 0 {
		return []domain.Result{}, nil
	}

	if mode == domain.ModeSummaryOnly {
		return s.fromSnippets(hits, tracker), nil
	}
	return s.fetchArticles(ctx, hits, tracker)
}

// fromSnippets keeps the short snippet content already present in the
// search results. Empty snippets become Failed jobs and are dropped.
func (s *Service) fromSnippets(hits []domain.Hit, tracker *progress.Tracker) []domain.Result {
	out := make([]domain.Result, 0, len(hits))
	for _, h := range hits {
		tag := articleTag(h.URL)
		if strings.TrimSpace(h.Snippet) == "" {
			tracker.UpdateJob(tag, h.Title, progress.StatusFailed, 100)
			continue
		}
		tracker.UpdateJob(tag, h.Title, progress.StatusCompleted, 100)
		out = append(out, domain.Result{Title: h.Title, URL: h.URL, Content: h.Snippet})
	}
	return out
}

func (s *Service) fetchArticles(ctx context.Context, hits []domain.Hit, tracker *progress.Tracker) ([]domain.Result, error) {
	out := make([]domain.Result, 0, len(hits))
	for _, h := range hits {
		// cooperative cancellation between articles
		if ctx.Err() != nil {
			return out, analysis.ErrCancelled
		}

		tag := articleTag(h.URL)
		tracker.UpdateJob(tag, h.Title, progress.StatusPending, 0)
		tracker.UpdateJob(tag, h.Title, progress.StatusInProgress, 50)

		content, err := s.readArticle(ctx, h.URL)
		if err != nil || strings.TrimSpace(content) == "" {
			if err != nil {
				log.Printf("research: article failed url=%s err=%v", h.URL, err)
			}
			tracker.UpdateJob(tag, h.Title, progress.StatusFailed, 100)
			continue
		}

		tracker.UpdateJob(tag, h.Title, progress.StatusCompleted, 100)
		out = append(out, domain.Result{Title: h.Title, URL: h.URL, Content: content})
	}
	return out, nil
}

// ReadArticle fetches and normalizes a single page. Exposed so the
// direct strategy can hand it to the model as a callable function.
func (s *Service) ReadArticle(ctx context.Context, url string) (string, error) {
	return s.readArticle(ctx, url)
}

func (s *Service) readArticle(ctx context.Context, url string) (string, error) {
	raw, err := s.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	text, err := s.Normalizer.Normalize(raw, url)
	if err != nil {
		return "", fmt.Errorf("normalize %s: %w", url, err)
	}
	return text, nil
}

func articleTag(url string) string {
	return "article:" + url
}
