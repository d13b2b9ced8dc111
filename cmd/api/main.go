package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/bryanwahyu/game-advisor/internal/application"
	appanalysis "github.com/bryanwahyu/game-advisor/internal/application/analysis"
	appresearch "github.com/bryanwahyu/game-advisor/internal/application/research"
	appruns "github.com/bryanwahyu/game-advisor/internal/application/runs"
	"github.com/bryanwahyu/game-advisor/internal/config"
	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
	"github.com/bryanwahyu/game-advisor/internal/domain/research"
	openaiprov "github.com/bryanwahyu/game-advisor/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/game-advisor/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/game-advisor/internal/infra/db/postgres"
	"github.com/bryanwahyu/game-advisor/internal/infra/httpserver"
	rulesrc "github.com/bryanwahyu/game-advisor/internal/infra/rules"
	"github.com/bryanwahyu/game-advisor/internal/infra/search/serper"
	minioStore "github.com/bryanwahyu/game-advisor/internal/infra/storage"
	"github.com/bryanwahyu/game-advisor/internal/infra/webcontent"
	"github.com/bryanwahyu/game-advisor/internal/middleware"
)

func main() {
	// .env optional, buat development lokal
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (mysql default, postgres opsional)
	var (
		db      *sql.DB
		repo    domain.Repository
		errRepo domain.RunErrorRepository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo = postgresp.NewAnalysisRepository(db)
		errRepo = postgresp.NewRunErrorRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo = mysqlp.NewAnalysisRepository(db)
		errRepo = mysqlp.NewRunErrorRepository(db)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init search + article pipeline
	searcher, err := serper.NewClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.SearchTimeout())
	if err != nil {
		log.Fatalf("search init error: %v", err)
	}
	researchSvc := &appresearch.Service{
		Searcher:   searcher,
		Fetcher:    webcontent.NewFetcher(cfg.FetchTimeout()),
		Normalizer: webcontent.NewNormalizer(),
		MaxResults: cfg.Search.MaxResults,
	}

	// init AI provider
	provider, err := openaiprov.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL, cfg.AI.DisplayName)
	if err != nil {
		log.Fatalf("ai init error: %v", err)
	}

	// init analysis service
	analyzer, err := appanalysis.NewService(
		provider,
		researchSvc,
		rulesrc.NewYAMLSource(cfg.Rules.Dir),
		application.SystemClock{},
		appanalysis.Strategy(cfg.AI.Strategy),
		research.Mode(cfg.Research.Mode),
	)
	if err != nil {
		log.Fatalf("analysis init error: %v", err)
	}

	// init run registry
	runsSvc := appruns.NewService(analyzer, repo, errRepo, store, application.SystemClock{})
	runsSvc.OnFinish = func(failed bool) {
		middleware.DecrementAnalysesRunning()
		if failed {
			middleware.IncrementAnalysesFailed()
		}
	}

	// init router
	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RateLimit.Capacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	}
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	}
	mux.Mount("/", httpserver.NewRouter(runsSvc, checkers))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s strategy=%s model=%s", addr, cfg.AI.Strategy, cfg.AI.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
