package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/dotstark/ragserve/internal/config"
	"github.com/dotstark/ragserve/internal/crawler"
	"github.com/dotstark/ragserve/internal/database"
	"github.com/dotstark/ragserve/internal/embedding"
	"github.com/dotstark/ragserve/internal/history"
	"github.com/dotstark/ragserve/internal/indexer"
	"github.com/dotstark/ragserve/internal/llm"
	"github.com/dotstark/ragserve/internal/queue"
	"github.com/dotstark/ragserve/internal/queue/workers"
	"github.com/dotstark/ragserve/internal/storage"
	"github.com/dotstark/ragserve/internal/vectorindex"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	backend, err := vectorindex.NewBackend(cfg.Vector, db)
	if err != nil {
		slog.Error("failed to set up vector backend", "error", err)
		os.Exit(1)
	}

	store := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	files := storage.NewKnowledgeFiles(store, cfg.Storage.Bucket)
	gateway := llm.NewGateway(cfg.LLM)
	embedSvc := embedding.NewService(gateway, cfg.LLM.EmbeddingModel, cfg.Vector.Dimension)
	indexMgr := vectorindex.NewManager(backend, cfg.Vector.Dimension)
	ix := indexer.New(indexMgr, files, crawler.New(), embedSvc)
	historyStore := history.NewStore(cfg.RAG.HistoryDir)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				queue.QueueIndexing: 6,
				"default":           4,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	reindexWorker := workers.NewReindexWorker(ix)
	analysisWorker := workers.NewAnalysisWorker(historyStore)

	registry.Register(queue.TypeReindexTenant, asynq.HandlerFunc(reindexWorker.ProcessTask))
	registry.Register(queue.TypeAnalysisRun, asynq.HandlerFunc(analysisWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
