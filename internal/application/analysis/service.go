package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bryanwahyu/game-advisor/internal/application"
	appresearch "github.com/bryanwahyu/game-advisor/internal/application/research"
	"github.com/bryanwahyu/game-advisor/internal/domain/ai"
	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
	"github.com/bryanwahyu/game-advisor/internal/domain/progress"
	"github.com/bryanwahyu/game-advisor/internal/domain/research"
	"github.com/bryanwahyu/game-advisor/internal/domain/rules"
)

// Strategy enum: how research reaches the model. Fixed per Service,
// never changes mid-run.
type Strategy string

const (
	// StrategyDirect exposes the two research tools to the model.
	StrategyDirect Strategy = "direct"
	// StrategyPrefetched runs research up front and injects it.
	StrategyPrefetched Strategy = "prefetched"
	// StrategyDelegated relies on provider-side retrieval.
	StrategyDelegated Strategy = "delegated"
)

// JobTagLLM is the tag of the model-call job.
const JobTagLLM = "llm-analysis"

// Service is the analysis orchestrator. One Analyze call is one run:
// optional research, prompt assembly, a streamed model turn, then
// extraction. The Service itself is stateless across runs.
type Service struct {
	Provider ai.Provider
	Research *appresearch.Service
	Rules    rules.Source
	Clock    application.Clock

	strategy Strategy
	mode     research.Mode
}

// NewService validates the provider/strategy pairing up front, before
// any network call is possible.
func NewService(provider ai.Provider, res *appresearch.Service, src rules.Source, clock application.Clock, strategy Strategy, mode research.Mode) (*Service, error) {
	if provider == nil {
		return nil, &domain.ConfigError{Field: "provider", Reason: "not configured"}
	}
	switch strategy {
	case StrategyDirect, StrategyPrefetched:
		if res == nil {
			return nil, &domain.ConfigError{Field: "research", Reason: fmt.Sprintf("strategy %q needs the research pipeline", strategy)}
		}
	case StrategyDelegated:
		if !provider.SupportsDelegatedSearch() {
			return nil, &domain.ConfigError{Field: "strategy", Reason: fmt.Sprintf("provider %q cannot search on its own", provider.Name())}
		}
	default:
		return nil, &domain.ConfigError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	if mode == "" {
		mode = research.ModeSummaryOnly
	}
	return &Service{Provider: provider, Research: res, Rules: src, Clock: clock, strategy: strategy, mode: mode}, nil
}

// Strategy reports the configured strategy.
func (s *Service) Strategy() Strategy { return s.strategy }

// Analyze runs one request end to end. The sink sees every progress
// merge in stream-event order. The caller gets either a complete
// Recommendation or a typed error, never a partial result.
func (s *Service) Analyze(ctx context.Context, req domain.Request, sink progress.Sink) (*domain.Recommendation, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, &domain.ConfigError{Field: "question", Reason: "is required"}
	}
	if req.PreferredProvider != "" && !strings.EqualFold(req.PreferredProvider, s.Provider.Name()) {
		return nil, fmt.Errorf("%w: %s", ai.ErrUnsupportedProvider, req.PreferredProvider)
	}

	tracker := progress.NewTracker(sink)
	collector := newResultCollector()

	// Researching (prefetched only)
	var prefetched []research.Result
	if s.strategy == StrategyPrefetched {
		results, err := s.Research.Perform(ctx, req.Domain, req.Question, s.mode, tracker)
		if err != nil {
			return nil, err
		}
		prefetched = results
		collector.addResults(results)
	}

	// PromptAssembly
	ruleList := s.loadRules(ctx, req)
	system := buildSystemPrompt(req.Domain, ruleList, prefetched, s.strategy == StrategyDelegated)

	chatReq := ai.ChatRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: system},
			{Role: ai.RoleUser, Content: req.Question, Image: req.Image, ImageMIME: req.ImageMIME},
		},
	}
	if s.strategy == StrategyDirect {
		chatReq.Tools = s.researchTools(collector)
	}

	// Streaming
	raw, err := s.consumeStream(ctx, chatReq, tracker)
	if err != nil {
		return nil, err
	}

	// Extracting
	rec, err := Extract(raw)
	if err != nil {
		tracker.UpdateJob(JobTagLLM, "Model analysis", progress.StatusFailed, 100)
		return nil, err
	}

	rec.ProviderUsed = s.Provider.Name()
	rec.GeneratedAt = s.Clock.Now()
	rec.SearchResults = collector.results()
	return rec, nil
}

// consumeStream drives the model call and turns stream events into
// progress merges. Events are handled strictly in arrival order; each
// merge reaches the sink before the next Recv.
func (s *Service) consumeStream(ctx context.Context, req ai.ChatRequest, tracker *progress.Tracker) (string, error) {
	tracker.UpdateJob(JobTagLLM, "Model analysis", progress.StatusPending, 0)

	stream, err := s.Provider.StreamChat(ctx, req)
	if err != nil {
		tracker.UpdateJob(JobTagLLM, "Model analysis", progress.StatusFailed, 100)
		return "", fmt.Errorf("model call: %w", err)
	}
	defer stream.Close()

	tracker.UpdateJob(JobTagLLM, "Model analysis", progress.StatusInProgress, 10)

	var buf strings.Builder
	for {
		ev, err := stream.Recv()
		if err != nil {
			tracker.UpdateJob(JobTagLLM, "Model analysis", progress.StatusFailed, 100)
			if errors.Is(err, context.Canceled) {
				return "", domain.ErrCancelled
			}
			return "", fmt.Errorf("model stream: %w", err)
		}

		switch ev.Type {
		case ai.EventTextDelta:
			buf.WriteString(ev.Text)
			tracker.UpdateJob(JobTagLLM, "Model analysis", progress.StatusInProgress, llmPct(buf.Len()))

		case ai.EventToolCallStart:
			tag := toolJobTag(ev.Call)
			tracker.UpdateJob(tag, toolJobName(ev.Call), progress.StatusPending, 0)
			tracker.UpdateJob(tag, toolJobName(ev.Call), progress.StatusInProgress, 50)

		case ai.EventToolCallResult:
			tag := toolJobTag(ev.Call)
			if ev.Err != nil {
				tracker.UpdateJob(tag, toolJobName(ev.Call), progress.StatusFailed, 100)
			} else {
				tracker.UpdateJob(tag, toolJobName(ev.Call), progress.StatusCompleted, 100)
			}

		case ai.EventFinish:
			tracker.UpdateJob(JobTagLLM, "Model analysis", progress.StatusCompleted, 100)
			return buf.String(), nil
		}
	}
}

func (s *Service) loadRules(ctx context.Context, req domain.Request) []rules.Rule {
	if s.Rules == nil {
		return nil
	}
	list, err := s.Rules.LoadRules(ctx, req.Domain, req.RuleFiles)
	if err != nil {
		// rules are additive guidance; a missing file should not sink the run
		log.Printf("analysis: rules load failed domain=%s err=%v", req.Domain, err)
		return nil
	}
	return list
}

func toolJobTag(call ai.ToolCall) string {
	return "tool:" + call.Name + ":" + call.ID
}

func toolJobName(call ai.ToolCall) string {
	switch call.Name {
	case toolSearchWeb:
		return "Model web search"
	case toolReadArticle:
		return "Model article read"
	}
	return call.Name
}

func llmPct(buffered int) int {
	pct := 10 + buffered/50
	if pct > 90 {
		pct = 90
	}
	return pct
}
