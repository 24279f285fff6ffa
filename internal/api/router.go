package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dotstark/ragserve/internal/api/handlers"
	"github.com/dotstark/ragserve/internal/api/middleware"
	"github.com/dotstark/ragserve/internal/auth"
	"github.com/dotstark/ragserve/internal/cache"
	"github.com/dotstark/ragserve/internal/config"
	"github.com/dotstark/ragserve/internal/embedding"
	"github.com/dotstark/ragserve/internal/history"
	"github.com/dotstark/ragserve/internal/knowledge"
	"github.com/dotstark/ragserve/internal/llm"
	"github.com/dotstark/ragserve/internal/messaging"
	"github.com/dotstark/ragserve/internal/queue"
	"github.com/dotstark/ragserve/internal/rag"
	"github.com/dotstark/ragserve/internal/storage"
	"github.com/dotstark/ragserve/internal/tenant"
	"github.com/dotstark/ragserve/internal/vectorindex"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	ts    *tenant.Service
	authS *auth.Service
	llmGW llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		ts:    tenant.NewService(db),
		authS: auth.NewService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenExpiry)*time.Minute),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() (http.Handler, error) {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	store := storage.NewSupabaseStorage(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey)
	files := storage.NewKnowledgeFiles(store, rt.cfg.Storage.Bucket)
	queueClient := queue.NewClient(rt.cfg.Redis)
	knowledgeSvc := knowledge.NewService(rt.db, files, queueClient)
	historyStore := history.NewStore(rt.cfg.RAG.HistoryDir)
	c := cache.NewCache(rt.redis)
	sender := messaging.NewClient()

	backend, err := vectorindex.NewBackend(rt.cfg.Vector, rt.db)
	if err != nil {
		return nil, fmt.Errorf("vector backend: %w", err)
	}
	indexMgr := vectorindex.NewManager(backend, rt.cfg.Vector.Dimension)

	fixed, err := rag.LoadFixedResponses(rt.cfg.RAG.FixedResponsesPath)
	if err != nil {
		return nil, fmt.Errorf("fixed responses: %w", err)
	}

	embedSvc := embedding.NewService(rt.llmGW, rt.cfg.LLM.EmbeddingModel, rt.cfg.Vector.Dimension)
	answerer := rag.NewAnswerer(fixed, embedSvc, indexMgr, rt.llmGW, rt.cfg.LLM.DefaultModel, rt.cfg.RAG.TopK)

	// Public chat and channel webhooks
	chatH := handlers.NewChatHandler(answerer, historyStore, rt.ts)
	r.Post("/rag/ask/{tenantID}", chatH.Ask)

	webhookH := handlers.NewWebhookHandler(answerer, historyStore, rt.ts, sender, c)
	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/meta/{tenantID}", webhookH.VerifyMeta)
		r.Post("/meta/{tenantID}", webhookH.HandleMeta)
		r.Post("/telegram/{tenantID}", webhookH.HandleTelegram)
	})

	// API v1
	authH := handlers.NewAuthHandler(rt.ts, rt.authS)
	tenantH := handlers.NewTenantHandler(rt.ts)
	knowledgeH := handlers.NewKnowledgeHandler(knowledgeSvc, queueClient)
	analyticsH := handlers.NewAnalyticsHandler(historyStore)

	r.Route("/api/v1", func(r chi.Router) {
		// Login and tenant signup (no auth)
		r.Post("/auth/login", authH.Login)
		r.Post("/tenants", tenantH.Create)

		// JWT protected
		r.Group(func(r chi.Router) {
			r.Use(rt.authS.Authenticate)

			r.Get("/tenants", tenantH.List)
			r.Get("/tenants/{id}", tenantH.Get)
			r.Put("/tenants/channel", tenantH.UpsertChannel)

			r.Get("/knowledge", knowledgeH.List)
			r.Post("/knowledge/files", knowledgeH.Upload)
			r.Post("/knowledge/urls", knowledgeH.AddURL)
			r.Put("/knowledge/urls/{id}", knowledgeH.UpdateURL)
			r.Delete("/knowledge/{id}", knowledgeH.Delete)
			r.Post("/knowledge/reindex", knowledgeH.Reindex)

			r.Get("/analytics/overview", analyticsH.Overview)
			r.Get("/analytics/top-questions", analyticsH.TopQuestions)
		})
	})

	return r, nil
}
