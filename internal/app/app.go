package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"orion/features/ingest"
	"orion/features/job"
	"orion/features/mcp"
	"orion/features/search"
	"orion/features/stats"
	"orion/internal/config"
	"orion/internal/embedding"
	"orion/internal/extractor"
	"orion/internal/middleware"
	"orion/internal/paths"
	"orion/internal/querylog"
	"orion/internal/queue"
	"orion/internal/vectorstore"
)

type App struct {
	Handler http.Handler
	Queue   queue.TaskQueue
	Port    int
}

// New composes the full dependency graph: the Upload Gate and its
// pipeline, the Search Engine, the Job ledger, library stats, the MCP
// tool surface, and their HTTP bindings.
func New(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*App, error) {
	logger.Info("wiring application dependencies", "task_queue", cfg.TaskQueue, "embedding_provider", cfg.EmbeddingProvider)

	dirsFor := func(userID string) paths.UserDirs {
		return paths.ForUser(cfg.BaseDir, userID)
	}
	storeFor := func(userID string) (vectorstore.Store, error) {
		dirs := paths.ForUser(cfg.BaseDir, userID)
		return vectorstore.NewStore(cfg.VectorStorageType, dirs.ProcessedVectors)
	}
	statsStoreFor := func(dir string) (vectorstore.Store, error) {
		return vectorstore.NewStore(cfg.VectorStorageType, dir)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	var taskQueue queue.TaskQueue
	switch cfg.TaskQueue {
	case "nsq":
		nsqQueue, err := queue.NewNSQQueue(cfg.NSQLookupd, cfg.NSQDHost, cfg.WorkerPoolSize)
		if err != nil {
			return nil, err
		}
		taskQueue = nsqQueue
	default:
		taskQueue = queue.NewInProcessQueue(cfg.WorkerPoolSize, 0)
	}

	pipelineCfg := ingest.Config{
		ChunkSize:       cfg.ChunkSize,
		OverlapFraction: cfg.ChunkOverlapPercent,
		EncoderName:     cfg.TokenizerName,
		EmbeddingModel:  cfg.EmbeddingModel,
		BatchSize:       cfg.EmbeddingBatchSize,
	}
	pipe := ingest.Build(pipelineCfg, extractor.NewRegistry(), dirsFor, ingest.DetectMIME, embedder, storeFor, cfg.PipelineTimeoutSeconds)

	jobRepo := job.NewPostgresRepo(db)

	gate := ingest.NewGate(cfg.BaseDir, cfg.MaxFileSize, taskQueue, pipe, nil)
	jobService := job.NewService(jobRepo, gate)
	gate.Ledger = jobService

	ingestHandler := ingest.NewHandler(gate, cfg.MaxFileSize)
	jobHandler := job.NewHandler(jobService)

	queryLogger, err := querylog.NewFileLogger("data/logs/query.log")
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = querylog.NewLogger(os.Stdout)
	}

	searchEngine := search.NewEngine(embedder, storeFor, cfg.EmbeddingModel, cfg.HybridAlpha)
	searchEngine.Logger = queryLogger
	searchHandler := search.NewHandler(searchEngine)

	statsService := stats.NewService(cfg.BaseDir, dirsFor, statsStoreFor)
	statsHandler := stats.NewHandler(statsService)

	mcpServer := mcp.NewServer(gate, searchEngine)
	mcpHTTPHandler := mcp.NewHTTPHandler(mcpServer)

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()

	mux.Handle("POST /ingest", middleware.CorrelationID(enableCORS(ingestHandler.Ingest)))
	mux.Handle("GET /search", middleware.CorrelationID(enableCORS(searchHandler.Search)))
	mux.Handle("GET /algorithms", middleware.CorrelationID(enableCORS(searchHandler.Algorithms)))
	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))
	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("/mcp", middleware.CorrelationID(mcpHTTPHandler))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{Handler: mux, Queue: taskQueue, Port: cfg.ServerPort}, nil
}

func buildEmbedder(cfg *config.Config) (embedding.Service, error) {
	switch cfg.EmbeddingProvider {
	case "gemini":
		return embedding.NewGeminiClient(context.Background(), cfg.EmbeddingAPIKey, cfg.EmbeddingBatchConcurrency)
	default:
		client := embedding.NewCohereClient(cfg.EmbeddingAPIKey, cfg.EmbeddingBatchConcurrency)
		if cfg.EmbeddingBaseURL != "" {
			client.SetBaseURL(cfg.EmbeddingBaseURL)
		}
		return client, nil
	}
}

// Run starts the worker pool and the HTTP server, and blocks until ctx
// is cancelled, at which point both shut down gracefully.
func (a *App) Run(ctx context.Context) error {
	go a.Queue.Run(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
