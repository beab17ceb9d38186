package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/api"
	"github.com/mnemoslab/mnemo/internal/config"
	"github.com/mnemoslab/mnemo/internal/embedding"
	"github.com/mnemoslab/mnemo/internal/llm"
	"github.com/mnemoslab/mnemo/internal/reranker"
	"github.com/mnemoslab/mnemo/internal/scheduler"
	"github.com/mnemoslab/mnemo/internal/store/postgres"
	"github.com/mnemoslab/mnemo/internal/store/sqlite"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	deps := api.Deps{}
	var closeStore func()

	switch backend := config.StorageBackend(); backend {
	case "postgres":
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is required for the postgres backend")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		deps.MemoryStore = postgres.NewMemoryStore(pool)
		deps.AssociationStore = postgres.NewAssociationStore(pool)
		deps.WorkspaceStore = postgres.NewWorkspaceStore(pool)
		deps.Ping = pool.Ping
		closeStore = pool.Close
		logger.Info("connected to database", zap.String("backend", backend))
	default:
		db, err := sqlite.Open(config.SQLitePath())
		if err != nil {
			logger.Fatal("failed to open sqlite database", zap.Error(err))
		}
		deps.MemoryStore = sqlite.NewMemoryStore(db)
		deps.AssociationStore = sqlite.NewAssociationStore(db)
		deps.WorkspaceStore = sqlite.NewWorkspaceStore(db)
		deps.Ping = db.PingContext
		closeStore = func() { _ = db.Close() }
		logger.Info("opened database", zap.String("backend", "sqlite"), zap.String("path", config.SQLitePath()))
	}
	defer closeStore()

	embedder, err := embedding.NewClient(config.EmbeddingProvider(), config.OpenAIAPIKey(), config.EmbeddingCacheSize())
	if err != nil {
		logger.Fatal("failed to initialize embedding client", zap.Error(err))
	}

	registry := llm.NewRegistry(logger)
	switch provider := config.LLMProvider(); provider {
	case "anthropic":
		registry.Register(llm.NewAnthropicProvider(config.AnthropicAPIKey()))
	case "mock":
		registry.Register(llm.NewMockProvider())
	default:
		registry.Register(llm.NewOpenAIProvider(config.OpenAIAPIKey()))
	}
	// Secondary providers become available for per-profile bindings.
	if config.LLMProvider() != "anthropic" && config.AnthropicAPIKey() != "" {
		registry.Register(llm.NewAnthropicProvider(config.AnthropicAPIKey()))
	}
	if config.LLMProvider() != "openai" && config.OpenAIAPIKey() != "" {
		registry.Register(llm.NewOpenAIProvider(config.OpenAIAPIKey()))
	}
	for _, profile := range []string{
		llm.ProfileRecall,
		llm.ProfileReranker,
		llm.ProfileTierGeneration,
		llm.ProfileExtraction,
		llm.ProfileOntology,
	} {
		if name := config.LLMProfileBinding(profile); name != "" {
			registry.Bind(profile, name)
		}
	}

	rr, err := reranker.New(config.RerankerProvider(), registry, embedder, config.RerankerEndpoint(), logger)
	if err != nil {
		logger.Fatal("failed to initialize reranker", zap.Error(err))
	}
	deps.Embedder = embedder
	deps.Registry = registry
	deps.Reranker = rr

	sched := scheduler.New(logger)
	if config.SchedulerDisabled() {
		sched.Disable()
	}
	deps.Scheduler = sched

	app, err := api.NewApp(deps, logger)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
