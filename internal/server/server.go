package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/botblock/blocklist-api/internal/blocklist"
	"github.com/botblock/blocklist-api/internal/cache"
	"github.com/botblock/blocklist-api/internal/config"
	"github.com/botblock/blocklist-api/internal/handler"
	"github.com/botblock/blocklist-api/internal/metrics"
	"github.com/botblock/blocklist-api/internal/middleware"
	"github.com/botblock/blocklist-api/internal/quota"
	"github.com/botblock/blocklist-api/internal/repository"
	"github.com/botblock/blocklist-api/internal/service"
	"github.com/botblock/blocklist-api/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router        *gin.Engine
	config        *config.Config
	redis         *storage.RedisClient
	postgres      *storage.Postgres
	store         *blocklist.Store
	refresher     *blocklist.Refresher
	apiKeyService *service.APIKeyService
	ledger        *quota.Ledger
	httpServer    *http.Server
}

// New wires the router. redis may be nil when the cache layer is
// disabled; everything else is required.
func New(cfg *config.Config, postgres *storage.Postgres, redis *storage.RedisClient, store *blocklist.Store, refresher *blocklist.Refresher, responseCache cache.Cache) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	apiKeyRepo := repository.NewAPIKeyRepository(postgres)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo)
	ledger := quota.NewLedger(repository.NewUsageRepository(postgres))

	middleware.InitRequestLogger(repository.NewRequestLogRepository(postgres), 1000)

	s := &Server{
		router:        router,
		config:        cfg,
		redis:         redis,
		postgres:      postgres,
		store:         store,
		refresher:     refresher,
		apiKeyService: apiKeyService,
		ledger:        ledger,
	}

	s.setupMiddleware()
	s.setupRoutes(responseCache)

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogger())
}

func (s *Server) setupRoutes(responseCache cache.Cache) {
	blocklistHandler := handler.NewBlocklistHandler(s.store, responseCache, s.config.Cache.TTL())
	usageHandler := handler.NewUsageHandler(s.ledger)
	updateHandler := handler.NewUpdateHandler(s.refresher, s.config.UpdateSecret)

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Refresh runs under its own shared secret, not the tiered keys
	s.router.GET("/update-ips", updateHandler.Run)

	protected := s.router.Group("")
	protected.Use(middleware.APIKeyAuth(s.apiKeyService))
	protected.Use(middleware.QuotaLimit(s.ledger))
	{
		protected.GET("/block-ips", blocklistHandler.GetAll)
		protected.GET("/block-ips/:agent", blocklistHandler.GetAgent)
		protected.GET("/usage", usageHandler.Get)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	redisHealthy := true
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	status := "healthy"
	if !dbHealthy || !redisHealthy {
		// Reads still serve the last good snapshot and quota fails
		// open, so a degraded process keeps answering 200.
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"service":   "blocklist-api",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"database": dbHealthy,
			"redis":    redisHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // refresh runs can take a while
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting blocklist API on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
