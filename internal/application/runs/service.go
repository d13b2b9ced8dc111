package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/game-advisor/internal/application"
	appanalysis "github.com/bryanwahyu/game-advisor/internal/application/analysis"
	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
	"github.com/bryanwahyu/game-advisor/internal/domain/progress"
)

// Status enum untuk Run
type Status string

const (
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// View is the caller-visible snapshot of one run.
type View struct {
	ID          domain.RunID           `json:"id"`
	TenantID    string                 `json:"tenant_id"`
	Domain      string                 `json:"domain"`
	Question    string                 `json:"question"`
	Status      Status                 `json:"status"`
	Progress    *progress.Progress     `json:"progress"`
	Result      *domain.Recommendation `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ArtifactURL string                 `json:"artifact_url,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
}

type runState struct {
	view   View
	cancel context.CancelFunc
}

// Service owns background analysis runs: start one per request, let
// the caller poll progress, persist the outcome. Each run gets its own
// progress accumulator; this registry only ever stores copies.
type Service struct {
	Analyzer  *appanalysis.Service
	Repo      domain.Repository
	Errors    domain.RunErrorRepository
	Artifacts domain.ArtifactStore
	Clock     application.Clock

	// OnFinish, when set, is called once per run after it reaches a
	// terminal status. Dipakai buat counter metrics.
	OnFinish func(failed bool)

	mu   sync.RWMutex
	runs map[domain.RunID]*runState
}

func NewService(analyzer *appanalysis.Service, repo domain.Repository, errRepo domain.RunErrorRepository, artifacts domain.ArtifactStore, clock application.Clock) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Service{
		Analyzer:  analyzer,
		Repo:      repo,
		Errors:    errRepo,
		Artifacts: artifacts,
		Clock:     clock,
		runs:      make(map[domain.RunID]*runState),
	}
}

// Start kicks the analysis off in the background and returns the run
// id immediately: the HTTP handler answers "queued" while the work
// keeps going with its own context, supaya gak kena context canceled.
func (s *Service) Start(tenant string, req domain.Request) domain.RunID {
	id := domain.RunID(fmt.Sprintf("%s-analysis", uuid.New().String()))
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.runs[id] = &runState{
		view: View{
			ID:        id,
			TenantID:  tenant,
			Domain:    req.Domain,
			Question:  req.Question,
			Status:    StatusRunning,
			Progress:  progress.New(),
			StartedAt: s.Clock.Now(),
		},
		cancel: cancel,
	}
	s.mu.Unlock()

	go s.execute(ctx, tenant, id, req)
	return id
}

func (s *Service) execute(ctx context.Context, tenant string, id domain.RunID, req domain.Request) {
	sink := progress.SinkFunc(func(p *progress.Progress) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if st, ok := s.runs[id]; ok {
			st.view.Progress = copyProgress(p)
		}
	})

	rec, err := s.Analyzer.Analyze(ctx, req, sink)
	now := s.Clock.Now()

	if err != nil {
		status := StatusFailed
		if errors.Is(err, domain.ErrCancelled) {
			status = StatusCancelled
		}
		s.finish(id, func(v *View) {
			v.Status = status
			v.Error = err.Error()
			v.FinishedAt = &now
		})
		if s.Errors != nil && status == StatusFailed {
			if serr := s.Errors.Save(context.Background(), tenant, id, "analyze", err.Error()); serr != nil {
				log.Printf("runs: persist error failed run=%s err=%v", id, serr)
			}
		}
		log.Printf("runs: analysis failed tenant=%s run=%s err=%v", tenant, id, err)
		if s.OnFinish != nil {
			s.OnFinish(status == StatusFailed)
		}
		return
	}

	resultJSON, _ := json.Marshal(rec)

	var artifactURL string
	if s.Artifacts != nil {
		key := fmt.Sprintf("%s/%s/result.json", tenant, id)
		url, uerr := s.Artifacts.UploadBytes(context.Background(), key, resultJSON, "application/json")
		if uerr != nil {
			// traceability only; the run itself succeeded
			log.Printf("runs: artifact upload failed run=%s err=%v", id, uerr)
		} else {
			artifactURL = url
		}
	}

	if s.Repo != nil {
		record := &domain.Record{
			ID:          id,
			TenantID:    tenant,
			Domain:      req.Domain,
			Question:    req.Question,
			ResultJSON:  string(resultJSON),
			ArtifactURL: artifactURL,
			Provider:    rec.ProviderUsed,
			CreatedAt:   now,
		}
		if serr := s.Repo.Save(context.Background(), record); serr != nil {
			log.Printf("runs: save record failed run=%s err=%v", id, serr)
		}
	}

	s.finish(id, func(v *View) {
		v.Status = StatusDone
		v.Result = rec
		v.ArtifactURL = artifactURL
		v.FinishedAt = &now
	})
	log.Printf("runs: analysis finished tenant=%s run=%s provider=%s", tenant, id, rec.ProviderUsed)
	if s.OnFinish != nil {
		s.OnFinish(false)
	}
}

func (s *Service) finish(id domain.RunID, mutate func(v *View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.runs[id]; ok {
		mutate(&st.view)
	}
}

// Get returns a snapshot of one run, scoped to its tenant.
func (s *Service) Get(tenant string, id domain.RunID) (*View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.runs[id]
	if !ok || st.view.TenantID != tenant {
		return nil, false
	}
	v := st.view
	v.Progress = copyProgress(st.view.Progress)
	return &v, true
}

// Cancel stops a running analysis cooperatively. Progress keeps its
// last reported state.
func (s *Service) Cancel(tenant string, id domain.RunID) bool {
	s.mu.RLock()
	st, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok || st.view.TenantID != tenant {
		return false
	}
	st.cancel()
	return true
}

// History reads finished runs from the repository.
func (s *Service) History(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Record, error) {
	if s.Repo == nil {
		return nil, nil
	}
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

func copyProgress(p *progress.Progress) *progress.Progress {
	if p == nil {
		return progress.New()
	}
	cp := &progress.Progress{
		Jobs:            make([]progress.Job, len(p.Jobs)),
		TotalPercentage: p.TotalPercentage,
	}
	copy(cp.Jobs, p.Jobs)
	return cp
}
