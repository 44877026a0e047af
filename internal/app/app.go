// Package app initializes and orchestrates the main components of the
// Githawk application. It wires together the configuration, stores, the
// job pipeline and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Abhijit1102/githawk/internal/config"
	"github.com/Abhijit1102/githawk/internal/db"
	"github.com/Abhijit1102/githawk/internal/githost"
	"github.com/Abhijit1102/githawk/internal/indexer"
	"github.com/Abhijit1102/githawk/internal/jobs"
	"github.com/Abhijit1102/githawk/internal/llm"
	"github.com/Abhijit1102/githawk/internal/quota"
	"github.com/Abhijit1102/githawk/internal/server"
	"github.com/Abhijit1102/githawk/internal/service"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// App holds the main application components.
type App struct {
	cfg        *config.Config
	server     *server.Server
	dispatcher *jobs.Dispatcher
	dbCleanup  func()
	logger     *slog.Logger
}

// NewApp sets up the application with all its dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing Githawk application",
		"provider", cfg.AI.Provider,
		"generator_model", cfg.AI.GeneratorModel,
		"embedder_model", cfg.AI.EmbedderModel,
		"max_workers", cfg.Jobs.MaxWorkers,
	)

	dbConn, dbCleanup, err := db.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := storage.NewStore(dbConn.DB)

	embedder, err := llm.NewEmbedder(cfg.AI, logger)
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	vectorStore := storage.NewQdrantVectorStore(cfg.QdrantHost, embedder, logger)

	model, err := llm.NewModel(ctx, cfg.AI, logger)
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to create generator model: %w", err)
	}
	promptMgr, err := llm.NewPromptManager()
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}

	generator := llm.NewGenerator(model, promptMgr, cfg.AI.Provider, cfg.MaxDiffChars, cfg.AI.GenerateTimeout, logger)
	retriever := llm.NewContextBuilder(vectorStore, cfg.Context, cfg.AI.EmbedderModel, logger)
	codeIndexer := indexer.New(vectorStore, cfg.Index, cfg.AI.EmbedderModel, logger)
	gate := quota.NewGate(store, cfg.Quota, logger)

	newClient := func(ctx context.Context, token string) githost.Client {
		return githost.NewClient(ctx, token, logger)
	}
	policy := jobs.RetryPolicy{
		MaxAttempts: cfg.Jobs.MaxAttempts,
		BaseDelay:   cfg.Jobs.RetryBaseDelay,
		StepTimeout: cfg.Jobs.StepTimeout,
	}

	indexJob := jobs.NewIndexJob(store, codeIndexer, newClient, policy, logger)
	reviewJob := jobs.NewReviewJob(store, gate, retriever, generator, newClient, policy, logger)
	dispatcher := jobs.NewDispatcher(indexJob, reviewJob, cfg.Jobs.MaxWorkers, logger)

	svc := service.New(store, vectorStore, gate, dispatcher, newClient, cfg.PublicBaseURL, cfg.AI.EmbedderModel, logger)
	httpServer := server.NewServer(cfg, svc, logger)

	logger.Info("Githawk application initialized successfully")
	return &App{
		cfg:        cfg,
		server:     httpServer,
		dispatcher: dispatcher,
		dbCleanup:  dbCleanup,
		logger:     logger,
	}, nil
}

// Start runs the HTTP server and blocks until shutdown.
func (a *App) Start() error {
	a.logger.Info("starting Githawk",
		"server_port", a.cfg.ServerPort,
		"max_workers", a.cfg.Jobs.MaxWorkers,
	)
	return a.server.Start()
}

// Stop shuts down the application cleanly: the HTTP server first so no new
// events arrive, then the dispatcher so in-flight jobs can finish, then the
// database pool.
func (a *App) Stop() error {
	a.logger.Info("shutting down Githawk services")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.dispatcher.Stop()

	a.logger.Info("closing database connection")
	a.dbCleanup()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("Githawk stopped successfully")
	return nil
}
