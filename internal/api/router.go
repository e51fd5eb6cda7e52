// Package api wires the HTTP surface of the pipeline.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/creditpipe/creditpipe/internal/api/handlers"
	"github.com/creditpipe/creditpipe/internal/api/middleware"
	"github.com/creditpipe/creditpipe/internal/cache"
	"github.com/creditpipe/creditpipe/internal/config"
	"github.com/creditpipe/creditpipe/internal/consolidate"
	"github.com/creditpipe/creditpipe/internal/queue"
	"github.com/creditpipe/creditpipe/internal/report"
	"github.com/creditpipe/creditpipe/internal/storage"
	"github.com/creditpipe/creditpipe/internal/webhook"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	store := storage.NewSupabaseStorage(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey)
	reportSvc := report.NewService(rt.db, store, rt.cfg.Storage.Bucket)
	queueClient := queue.NewClient(rt.cfg.Redis)
	dispatcher := webhook.NewDispatcher(rt.db)
	webhookSvc := webhook.NewService(rt.db, dispatcher)
	redisCache := cache.NewCache(rt.redis)

	// The API process never extracts; this manager only serves reads
	// (Compare) on already-stored extraction results.
	engine := consolidate.NewEngine(rt.cfg.Consolidation)
	manager := report.NewManager(reportSvc, store, rt.cfg.Storage.Bucket, nil, engine, webhookSvc, rt.cfg.Consolidation.DefaultStrategy)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		reportH := handlers.NewReportHandler(reportSvc, queueClient, redisCache)
		resultH := handlers.NewResultHandler(reportSvc)
		consolidationH := handlers.NewConsolidationHandler(reportSvc, manager, queueClient)

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", reportH.Upload)
			r.Get("/", reportH.List)
			r.Get("/{id}", reportH.Get)
			r.Delete("/{id}", reportH.Delete)
			r.Get("/{id}/status", reportH.Status)
			r.Post("/{id}/reprocess", reportH.Reprocess)

			r.Get("/{id}/results", resultH.List)
			r.Get("/{id}/entities", resultH.Entities)

			r.Get("/{id}/consolidation", consolidationH.Get)
			r.Get("/{id}/consolidation/compare", consolidationH.Compare)
			r.Post("/{id}/consolidation", consolidationH.Trigger)
		})

		webhookH := handlers.NewWebhookHandler(webhookSvc)
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", webhookH.Create)
			r.Get("/", webhookH.List)
			r.Delete("/{id}", webhookH.Delete)
		})
	})

	return r
}
