package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/creditpipe/creditpipe/internal/cache"
	"github.com/creditpipe/creditpipe/internal/config"
	"github.com/creditpipe/creditpipe/internal/consolidate"
	"github.com/creditpipe/creditpipe/internal/database"
	"github.com/creditpipe/creditpipe/internal/extract"
	"github.com/creditpipe/creditpipe/internal/ocr"
	"github.com/creditpipe/creditpipe/internal/queue"
	"github.com/creditpipe/creditpipe/internal/queue/workers"
	"github.com/creditpipe/creditpipe/internal/report"
	"github.com/creditpipe/creditpipe/internal/storage"
	"github.com/creditpipe/creditpipe/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	backends, err := ocr.Build(cfg.OCR, cfg.Extraction)
	if err != nil {
		slog.Error("failed to build extraction backends", "error", err)
		os.Exit(1)
	}
	slog.Info("extraction chain ready", "backends", len(backends))

	store := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	reportSvc := report.NewService(db, store, cfg.Storage.Bucket)
	dispatcher := webhook.NewDispatcher(db)
	webhookSvc := webhook.NewService(db, dispatcher)

	orchestrator := extract.NewOrchestrator(backends, cfg.Extraction)
	engine := consolidate.NewEngine(cfg.Consolidation)
	manager := report.NewManager(reportSvc, store, cfg.Storage.Bucket, orchestrator, engine, webhookSvc, cfg.Consolidation.DefaultStrategy)

	locks := cache.NewCache(rdb)
	extractWorker := workers.NewExtractWorker(manager, locks)
	consolidateWorker := workers.NewConsolidateWorker(manager)

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeReportExtract, asynq.HandlerFunc(extractWorker.ProcessTask))
	mux.Handle(queue.TypeReportConsolidate, asynq.HandlerFunc(consolidateWorker.ProcessTask))

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
