package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	appruns "github.com/bryanwahyu/game-advisor/internal/application/runs"
	domai "github.com/bryanwahyu/game-advisor/internal/domain/ai"
	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
	"github.com/bryanwahyu/game-advisor/internal/middleware"
)

const maxImageBytes = 10 << 20 // 10MB upload cap

type Router struct {
	runsSvc *appruns.Service
}

func NewRouter(runsSvc *appruns.Service, checkers map[string]middleware.HealthChecker) http.Handler {
	r := &Router{runsSvc: runsSvc}
	mux := chi.NewRouter()

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)
		rt.Post("/ai/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/ai/analyze/{id}", r.wrap(r.handleGetRun))
		rt.Delete("/ai/analyze/{id}", r.wrap(r.handleCancelRun))
		rt.Get("/ai/analyze", r.wrap(r.handleHistory))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var cfgErr *domain.ConfigError
			if errors.As(err, &cfgErr) {
				http.Error(w, cfgErr.Error(), http.StatusBadRequest)
				return
			}
			if errors.Is(err, domai.ErrQuotaExceeded) {
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
				return
			}
			if errors.Is(err, errNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

var errNotFound = errors.New("not found")

// POST /v1/{tenant}/ai/analyze
// multipart/form-data: image (file), question, domain, rule_files (csv, optional)
// The analysis runs in the background; poll the returned run id.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if err := middleware.ValidateTenantID(tenant); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	if err := req.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil
	}

	question := middleware.SanitizeString(req.FormValue("question"))
	gameDomain := strings.TrimSpace(req.FormValue("domain"))
	if question == "" || gameDomain == "" {
		http.Error(w, "question and domain are required", http.StatusBadRequest)
		return nil
	}

	file, header, err := req.FormFile("image")
	if err != nil {
		http.Error(w, "image file is required", http.StatusBadRequest)
		return nil
	}
	defer file.Close()

	mime := header.Header.Get("Content-Type")
	if err := middleware.ValidateImageMIME(mime); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	var ruleFiles []string
	if raw := strings.TrimSpace(req.FormValue("rule_files")); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				ruleFiles = append(ruleFiles, f)
			}
		}
	}

	middleware.IncrementAnalyses()
	middleware.IncrementAnalysesRunning()
	id := r.runsSvc.Start(tenant, domain.Request{
		Image:             image,
		ImageMIME:         mime,
		Question:          question,
		Domain:            gameDomain,
		RuleFiles:         ruleFiles,
		PreferredProvider: strings.TrimSpace(req.FormValue("provider")),
	})

	// 🔙 langsung balikin respons ke client
	resp := map[string]any{
		"status":  "queued",
		"tenant":  tenant,
		"run_id":  id,
		"domain":  gameDomain,
		"message": "analysis started in background",
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/{tenant}/ai/analyze/{id}
func (r *Router) handleGetRun(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRunID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	view, ok := r.runsSvc.Get(tenant, domain.RunID(id))
	if !ok {
		return errNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(view)
}

// DELETE /v1/{tenant}/ai/analyze/{id} → cancel a running analysis
func (r *Router) handleCancelRun(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	if !r.runsSvc.Cancel(tenant, domain.RunID(id)) {
		return errNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]string{"status": "cancelling", "run_id": id})
}

// GET /v1/{tenant}/ai/analyze?page=&page_size=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	size = middleware.ValidateLimit(size)

	list, err := r.runsSvc.History(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}
