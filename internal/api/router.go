package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/api/handlers"
	mw "github.com/mnemoslab/mnemo/internal/api/middleware"
	"github.com/mnemoslab/mnemo/internal/config"
	"github.com/mnemoslab/mnemo/internal/domain"
	"github.com/mnemoslab/mnemo/internal/llm"
	"github.com/mnemoslab/mnemo/internal/scheduler"
	"github.com/mnemoslab/mnemo/internal/service"
)

// Deps carries the externally-constructed collaborators into NewApp.
// Stores are interfaces so main can pick the sqlite or postgres backend.
type Deps struct {
	MemoryStore      domain.MemoryStore
	AssociationStore domain.AssociationStore
	WorkspaceStore   domain.WorkspaceStore
	Embedder         domain.EmbeddingClient
	Registry         *llm.Registry
	Reranker         domain.Reranker
	Scheduler        *scheduler.Scheduler
	Ping             func(ctx context.Context) error
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Memories     *service.MemoryService
	Decay        *service.DecayService
	Scheduler    *scheduler.Scheduler
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(deps Deps, logger *zap.Logger) (*App, error) {
	// Services
	ontologySvc := service.NewOntologyService(deps.Registry, logger)
	associationSvc := service.NewAssociationService(deps.AssociationStore, deps.MemoryStore, ontologySvc, logger)
	dedupSvc := service.NewDedupService(deps.MemoryStore, logger)
	tierSvc := service.NewTierService(deps.MemoryStore, deps.Registry, logger)
	extractionSvc := service.NewExtractionService(deps.Registry, logger)
	decaySvc := service.NewDecayService(deps.MemoryStore, logger)
	decaySvc.SetDecayRate(config.DecayRate())
	contradictionSvc := service.NewContradictionService(deps.MemoryStore, associationSvc, deps.Registry, logger)
	memorySvc := service.NewMemoryService(deps.MemoryStore, deps.Embedder, dedupSvc, logger)
	workspaceSvc := service.NewWorkspaceService(deps.WorkspaceStore, logger)

	// Wire the post-store pipeline into the memory service
	memorySvc.SetRegistry(deps.Registry)
	memorySvc.SetAssociations(associationSvc)
	memorySvc.SetTiers(tierSvc)
	memorySvc.SetContradiction(contradictionSvc)
	memorySvc.SetExtraction(extractionSvc)
	memorySvc.SetDecay(decaySvc)
	if deps.Reranker != nil {
		memorySvc.SetReranker(deps.Reranker)
	}
	memorySvc.SetScheduler(deps.Scheduler)

	if err := service.RegisterTaskHandlers(deps.Scheduler, memorySvc, tierSvc, decaySvc); err != nil {
		return nil, err
	}

	// Handlers
	memoryHandler := handlers.NewMemoryHandler(memorySvc)
	associationHandler := handlers.NewAssociationHandler(associationSvc)
	workspaceHandler := handlers.NewWorkspaceHandler(workspaceSvc)
	maintenanceHandler := handlers.NewMaintenanceHandler(decaySvc, deps.Scheduler)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Memories:  memorySvc,
		Decay:     decaySvc,
		Scheduler: deps.Scheduler,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(deps.Ping))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		// Workspaces are addressed by URL, no scope header needed
		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", workspaceHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", workspaceHandler.GetByID)
				r.Post("/contexts", workspaceHandler.CreateContext)
				r.Get("/settings", workspaceHandler.GetSettings)
			})
		})

		// Everything else runs inside a workspace
		r.Group(func(r chi.Router) {
			r.Use(mw.WorkspaceScope)

			r.Route("/memories", func(r chi.Router) {
				r.Post("/", memoryHandler.Remember)
				r.Post("/recall", memoryHandler.Recall)
				r.Post("/batch", memoryHandler.Batch)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", memoryHandler.GetByID)
					r.Delete("/", memoryHandler.Forget)
					r.Post("/decay", memoryHandler.Decay)
					r.Get("/traverse", associationHandler.Traverse)
					r.Get("/causal_chain", associationHandler.CausalChain)
					r.Get("/solutions", associationHandler.Solutions)
					r.Get("/contradictions", associationHandler.Contradictions)
				})
			})

			r.Post("/associations", associationHandler.Create)
			r.Post("/reflect", memoryHandler.Reflect)
			r.Post("/maintenance/decay", maintenanceHandler.TriggerDecayPass)
			r.Get("/tasks/{id}", maintenanceHandler.TaskStatus)
		})
	})

	return app, nil
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
