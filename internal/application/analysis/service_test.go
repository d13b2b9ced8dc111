package analysis

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	appresearch "github.com/bryanwahyu/game-advisor/internal/application/research"
	"github.com/bryanwahyu/game-advisor/internal/domain/ai"
	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
	"github.com/bryanwahyu/game-advisor/internal/domain/progress"
	"github.com/bryanwahyu/game-advisor/internal/domain/research"
	"github.com/bryanwahyu/game-advisor/internal/domain/rules"
)

// scriptedStream replays a fixed event sequence.
type scriptedStream struct {
	events []ai.StreamEvent
	pos    int
	err    error
}

func (s *scriptedStream) Recv() (ai.StreamEvent, error) {
	if s.pos >= len(s.events) {
		if s.err != nil {
			return ai.StreamEvent{}, s.err
		}
		return ai.StreamEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *scriptedStream) Close() error { return nil }

type fakeProvider struct {
	name      string
	delegated bool
	events    []ai.StreamEvent
	streamErr error
	recvErr   error
	lastReq   ai.ChatRequest
}

func (f *fakeProvider) Name() string                  { return f.name }
func (f *fakeProvider) SupportsDelegatedSearch() bool { return f.delegated }
func (f *fakeProvider) StreamChat(_ context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	f.lastReq = req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &scriptedStream{events: f.events, err: f.recvErr}, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeSearcher struct{ hits []research.Hit }

func (f fakeSearcher) Search(context.Context, string, int) ([]research.Hit, error) {
	return f.hits, nil
}

type fakeRules struct{ list []rules.Rule }

func (f fakeRules) LoadRules(context.Context, string, []string) ([]rules.Rule, error) {
	return f.list, nil
}

func textThenFinish(text string) []ai.StreamEvent {
	return []ai.StreamEvent{
		{Type: ai.EventTextDelta, Text: text},
		{Type: ai.EventFinish},
	}
}

func researchService(hits ...research.Hit) *appresearch.Service {
	return &appresearch.Service{Searcher: fakeSearcher{hits: hits}}
}

func TestNewServiceValidation(t *testing.T) {
	res := researchService()
	cases := []struct {
		name     string
		provider ai.Provider
		research *appresearch.Service
		strategy Strategy
	}{
		{"nil provider", nil, res, StrategyDirect},
		{"direct without research", &fakeProvider{name: "p"}, nil, StrategyDirect},
		{"prefetched without research", &fakeProvider{name: "p"}, nil, StrategyPrefetched},
		{"delegated on plain provider", &fakeProvider{name: "p", delegated: false}, res, StrategyDelegated},
		{"unknown strategy", &fakeProvider{name: "p"}, res, Strategy("psychic")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewService(tc.provider, tc.research, nil, nil, tc.strategy, research.ModeSummaryOnly)
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}

	// valid pairings construct fine
	if _, err := NewService(&fakeProvider{name: "p"}, res, nil, nil, StrategyPrefetched, research.ModeSummaryOnly); err != nil {
		t.Fatalf("prefetched should construct: %v", err)
	}
	if _, err := NewService(&fakeProvider{name: "p", delegated: true}, nil, nil, nil, StrategyDelegated, ""); err != nil {
		t.Fatalf("delegated should construct: %v", err)
	}
}

func TestAnalyzePrefetchedEndToEnd(t *testing.T) {
	prov := &fakeProvider{
		name:   "GPT-4o",
		events: textThenFinish(`{"Analysis":"a","Summary":"b","Recommendations":[],"Confidence":0.8}`),
	}
	res := researchService(research.Hit{Title: "Focus guide", URL: "https://wiki.example/focus", Snippet: "farm lith"})
	svc, err := NewService(prov, res, fakeRules{list: []rules.Rule{{Category: "builds", Text: "prefer survivability"}}}, fixedClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}, StrategyPrefetched, research.ModeSummaryOnly)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	rec, err := svc.Analyze(context.Background(), domain.Request{
		Question: "what should I build next?",
		Domain:   "Warframe",
		Image:    []byte{0x89, 0x50},
	}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if rec.Analysis != "a" || rec.Summary != "b" {
		t.Fatalf("unexpected recommendation: %+v", rec)
	}
	if rec.Confidence != 0.8 {
		t.Fatalf("confidence = %v", rec.Confidence)
	}
	if len(rec.Recommendations) != 0 {
		t.Fatalf("expected 0 items, got %d", len(rec.Recommendations))
	}
	if rec.ProviderUsed != "GPT-4o" {
		t.Fatalf("provider = %q", rec.ProviderUsed)
	}
	if !rec.GeneratedAt.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("generated at = %v", rec.GeneratedAt)
	}
	if len(rec.SearchResults) != 1 || rec.SearchResults[0].URL != "https://wiki.example/focus" {
		t.Fatalf("search results = %+v", rec.SearchResults)
	}

	// prefetched runs expose no tools and inject research into the prompt
	if len(prov.lastReq.Tools) != 0 {
		t.Fatalf("prefetched must not pass tools, got %d", len(prov.lastReq.Tools))
	}
	system := prov.lastReq.Messages[0].Content
	if !strings.Contains(system, "farm lith") {
		t.Fatalf("system prompt missing research content:\n%s", system)
	}
	if !strings.Contains(system, "prefer survivability") {
		t.Fatalf("system prompt missing rules:\n%s", system)
	}
	if prov.lastReq.Messages[1].Image == nil {
		t.Fatalf("user message should carry the screenshot")
	}
}

func TestAnalyzeDirectPassesExactlyTwoTools(t *testing.T) {
	prov := &fakeProvider{
		name:   "GPT-4o",
		events: textThenFinish(`{"analysis":"a","summary":"s","confidence":0.5}`),
	}
	svc, err := NewService(prov, researchService(), nil, nil, StrategyDirect, research.ModeSummaryOnly)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Analyze(context.Background(), domain.Request{Question: "q", Domain: "d"}, nil); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(prov.lastReq.Tools) != 2 {
		t.Fatalf("direct must pass exactly 2 tools, got %d", len(prov.lastReq.Tools))
	}
	names := map[string]bool{}
	for _, tool := range prov.lastReq.Tools {
		names[tool.Name] = true
	}
	if !names["search_web"] || !names["read_article"] {
		t.Fatalf("unexpected tool names: %v", names)
	}
}

func TestAnalyzeDelegatedPassesNoTools(t *testing.T) {
	prov := &fakeProvider{
		name:      "gpt-4o-search-preview",
		delegated: true,
		events:    textThenFinish(`{"analysis":"a","summary":"s","confidence":0.5}`),
	}
	svc, err := NewService(prov, nil, nil, nil, StrategyDelegated, "")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Analyze(context.Background(), domain.Request{Question: "q", Domain: "d"}, nil); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(prov.lastReq.Tools) != 0 {
		t.Fatalf("delegated must not pass tools, got %d", len(prov.lastReq.Tools))
	}
}

func TestAnalyzeToolEventsBecomeJobs(t *testing.T) {
	call := ai.ToolCall{ID: "call_1", Name: "search_web", Arguments: `{"query":"x"}`}
	prov := &fakeProvider{
		name: "GPT-4o",
		events: []ai.StreamEvent{
			{Type: ai.EventToolCallStart, Call: call},
			{Type: ai.EventToolCallResult, Call: call, Result: "hits"},
			{Type: ai.EventTextDelta, Text: `{"analysis":"a","summary":"s","confidence":0.5}`},
			{Type: ai.EventFinish},
		},
	}
	svc, err := NewService(prov, researchService(), nil, nil, StrategyDirect, research.ModeSummaryOnly)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	var last *progress.Progress
	sink := progress.SinkFunc(func(p *progress.Progress) {
		cp := *p
		cp.Jobs = append([]progress.Job(nil), p.Jobs...)
		last = &cp
	})

	if _, err := svc.Analyze(context.Background(), domain.Request{Question: "q", Domain: "d"}, sink); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var toolJob *progress.Job
	for i := range last.Jobs {
		if last.Jobs[i].Tag == "tool:search_web:call_1" {
			toolJob = &last.Jobs[i]
		}
	}
	if toolJob == nil {
		t.Fatalf("no job for the tool call: %+v", last.Jobs)
	}
	if toolJob.Status != progress.StatusCompleted {
		t.Fatalf("tool job status = %s", toolJob.Status)
	}
	// llm job appears before the tool job: it is merged first
	if last.Jobs[0].Tag != JobTagLLM {
		t.Fatalf("llm job should be first, got %+v", last.Jobs)
	}
	if last.Jobs[0].Status != progress.StatusCompleted {
		t.Fatalf("llm job status = %s", last.Jobs[0].Status)
	}
}

func TestAnalyzeExtractionFailureMarksJob(t *testing.T) {
	prov := &fakeProvider{name: "GPT-4o", events: textThenFinish("total nonsense")}
	svc, err := NewService(prov, researchService(), nil, nil, StrategyPrefetched, research.ModeSummaryOnly)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	var last *progress.Progress
	sink := progress.SinkFunc(func(p *progress.Progress) {
		cp := *p
		cp.Jobs = append([]progress.Job(nil), p.Jobs...)
		last = &cp
	})

	_, err = svc.Analyze(context.Background(), domain.Request{Question: "q", Domain: "d"}, sink)
	var exErr *domain.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	for _, j := range last.Jobs {
		if j.Tag == JobTagLLM && j.Status != progress.StatusFailed {
			t.Fatalf("llm job should be failed after extraction error, got %s", j.Status)
		}
	}
}

func TestAnalyzeCancelledStream(t *testing.T) {
	prov := &fakeProvider{name: "GPT-4o", recvErr: context.Canceled}
	svc, err := NewService(prov, researchService(), nil, nil, StrategyPrefetched, research.ModeSummaryOnly)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Analyze(context.Background(), domain.Request{Question: "q", Domain: "d"}, nil)
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestAnalyzePreferredProviderMustMatch(t *testing.T) {
	prov := &fakeProvider{
		name:   "GPT-4o",
		events: textThenFinish(`{"analysis":"a","summary":"s","confidence":0.5}`),
	}
	svc, err := NewService(prov, researchService(), nil, nil, StrategyPrefetched, research.ModeSummaryOnly)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Analyze(context.Background(), domain.Request{Question: "q", Domain: "d", PreferredProvider: "claude"}, nil)
	if !errors.Is(err, ai.ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}

	// case-insensitive match on the configured provider passes
	if _, err := svc.Analyze(context.Background(), domain.Request{Question: "q", Domain: "d", PreferredProvider: "gpt-4o"}, nil); err != nil {
		t.Fatalf("matching preference should run: %v", err)
	}
}

func TestAnalyzeEmptyQuestionRejected(t *testing.T) {
	prov := &fakeProvider{name: "GPT-4o"}
	svc, err := NewService(prov, researchService(), nil, nil, StrategyPrefetched, research.ModeSummaryOnly)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	_, err = svc.Analyze(context.Background(), domain.Request{Question: "   ", Domain: "d"}, nil)
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for empty question, got %v", err)
	}
}
