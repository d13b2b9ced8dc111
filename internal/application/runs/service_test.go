package runs

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	appanalysis "github.com/bryanwahyu/game-advisor/internal/application/analysis"
	appresearch "github.com/bryanwahyu/game-advisor/internal/application/research"
	"github.com/bryanwahyu/game-advisor/internal/domain/ai"
	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
	"github.com/bryanwahyu/game-advisor/internal/domain/research"
)

type scriptedStream struct {
	events []ai.StreamEvent
	pos    int
	ctx    context.Context
}

func (s *scriptedStream) Recv() (ai.StreamEvent, error) {
	if s.ctx != nil {
		select {
		case <-s.ctx.Done():
			return ai.StreamEvent{}, s.ctx.Err()
		default:
		}
	}
	if s.pos >= len(s.events) {
		return ai.StreamEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *scriptedStream) Close() error { return nil }

type fakeProvider struct {
	events  []ai.StreamEvent
	block   bool // when set, Recv waits for ctx cancellation
	started chan struct{}
	once    sync.Once
}

func (f *fakeProvider) Name() string                  { return "GPT-4o" }
func (f *fakeProvider) SupportsDelegatedSearch() bool { return false }
func (f *fakeProvider) StreamChat(ctx context.Context, _ ai.ChatRequest) (ai.ChatStream, error) {
	f.once.Do(func() {
		if f.started != nil {
			close(f.started)
		}
	})
	if f.block {
		return &blockingStream{ctx: ctx}, nil
	}
	return &scriptedStream{events: f.events}, nil
}

type blockingStream struct{ ctx context.Context }

func (s *blockingStream) Recv() (ai.StreamEvent, error) {
	<-s.ctx.Done()
	return ai.StreamEvent{}, s.ctx.Err()
}

func (s *blockingStream) Close() error { return nil }

type fakeSearcher struct{}

func (fakeSearcher) Search(context.Context, string, int) ([]research.Hit, error) {
	return nil, nil
}

type memRepo struct {
	mu      sync.Mutex
	records []*domain.Record
}

func (r *memRepo) Save(_ context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRepo) Paginate(_ context.Context, tenant string, _, _ int) ([]*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Record{}
	for _, rec := range r.records {
		if rec.TenantID == tenant {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRepo) Latest(_ context.Context, tenant string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].TenantID == tenant {
			return r.records[i], nil
		}
	}
	return nil, nil
}

type memArtifacts struct {
	mu   sync.Mutex
	keys []string
}

func (a *memArtifacts) UploadBytes(_ context.Context, key string, _ []byte, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return "https://cdn.example/" + key, nil
}

func newTestService(t *testing.T, prov ai.Provider, repo domain.Repository, artifacts domain.ArtifactStore) *Service {
	t.Helper()
	analyzer, err := appanalysis.NewService(
		prov,
		&appresearch.Service{Searcher: fakeSearcher{}},
		nil, nil,
		appanalysis.StrategyPrefetched,
		research.ModeSummaryOnly,
	)
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}
	return NewService(analyzer, repo, nil, artifacts, nil)
}

func waitStatus(t *testing.T, svc *Service, tenant string, id domain.RunID, want Status) *View {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, ok := svc.Get(tenant, id)
		if !ok {
			t.Fatalf("run %s disappeared", id)
		}
		if view.Status == want {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	view, _ := svc.Get(tenant, id)
	t.Fatalf("run %s never reached %s, stuck at %s (%s)", id, want, view.Status, view.Error)
	return nil
}

func TestStartRunsToCompletion(t *testing.T) {
	prov := &fakeProvider{events: []ai.StreamEvent{
		{Type: ai.EventTextDelta, Text: `{"analysis":"a","summary":"s","confidence":0.9}`},
		{Type: ai.EventFinish},
	}}
	repo := &memRepo{}
	artifacts := &memArtifacts{}
	svc := newTestService(t, prov, repo, artifacts)

	id := svc.Start("tenant-a", domain.Request{Question: "q", Domain: "Warframe"})
	if !strings.HasSuffix(string(id), "-analysis") {
		t.Fatalf("unexpected run id %q", id)
	}

	view := waitStatus(t, svc, "tenant-a", id, StatusDone)
	if view.Result == nil || view.Result.Analysis != "a" {
		t.Fatalf("missing result: %+v", view)
	}
	if view.FinishedAt == nil {
		t.Fatal("finished run must carry FinishedAt")
	}
	if view.ArtifactURL == "" {
		t.Fatal("artifact url should be set")
	}

	records, err := repo.Paginate(context.Background(), "tenant-a", 1, 10)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d (%v)", len(records), err)
	}
	if records[0].Provider != "GPT-4o" {
		t.Fatalf("record provider = %q", records[0].Provider)
	}

	artifacts.mu.Lock()
	defer artifacts.mu.Unlock()
	if len(artifacts.keys) != 1 || !strings.HasPrefix(artifacts.keys[0], "tenant-a/") {
		t.Fatalf("unexpected artifact keys: %v", artifacts.keys)
	}
}

func TestStartFailedRun(t *testing.T) {
	// model speaks nonsense, extraction fails, the run ends failed
	prov := &fakeProvider{events: []ai.StreamEvent{
		{Type: ai.EventTextDelta, Text: "no json here"},
		{Type: ai.EventFinish},
	}}
	svc := newTestService(t, prov, &memRepo{}, nil)

	finished := make(chan bool, 1)
	svc.OnFinish = func(failed bool) { finished <- failed }

	id := svc.Start("tenant-a", domain.Request{Question: "q", Domain: "d"})
	view := waitStatus(t, svc, "tenant-a", id, StatusFailed)
	if view.Error == "" {
		t.Fatal("failed run must carry the error message")
	}

	select {
	case failed := <-finished:
		if !failed {
			t.Fatal("OnFinish should report failure")
		}
	case <-time.After(time.Second):
		t.Fatal("OnFinish never called")
	}
}

func TestCancelRun(t *testing.T) {
	prov := &fakeProvider{block: true, started: make(chan struct{})}
	svc := newTestService(t, prov, &memRepo{}, nil)

	id := svc.Start("tenant-a", domain.Request{Question: "q", Domain: "d"})
	<-prov.started

	if !svc.Cancel("tenant-a", id) {
		t.Fatal("cancel should find the run")
	}
	view := waitStatus(t, svc, "tenant-a", id, StatusCancelled)
	if view.Status != StatusCancelled {
		t.Fatalf("status = %s", view.Status)
	}
}

func TestGetIsTenantScoped(t *testing.T) {
	prov := &fakeProvider{events: []ai.StreamEvent{
		{Type: ai.EventTextDelta, Text: `{"analysis":"a","summary":"s","confidence":0.5}`},
		{Type: ai.EventFinish},
	}}
	svc := newTestService(t, prov, &memRepo{}, nil)

	id := svc.Start("tenant-a", domain.Request{Question: "q", Domain: "d"})
	if _, ok := svc.Get("tenant-b", id); ok {
		t.Fatal("a run must not be visible to another tenant")
	}
	if svc.Cancel("tenant-b", id) {
		t.Fatal("a run must not be cancellable by another tenant")
	}
	waitStatus(t, svc, "tenant-a", id, StatusDone)
}
