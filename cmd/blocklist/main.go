package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/botblock/blocklist-api/internal/blocklist"
	"github.com/botblock/blocklist-api/internal/cache"
	"github.com/botblock/blocklist-api/internal/config"
	"github.com/botblock/blocklist-api/internal/server"
	"github.com/botblock/blocklist-api/internal/storage"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	postgres, err := storage.NewPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// The cache is an optional collaborator: without redis the API
	// still serves, every read just hits the store.
	var responseCache cache.Cache = cache.Disabled{}
	redis, err := storage.NewRedis(
		cfg.Redis.GetRedisAddr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		log.Printf("Redis unavailable, running without response cache: %v", err)
		redis = nil
	} else {
		defer redis.Close()
		responseCache = cache.NewRedis(redis)
		log.Println("Connected to redis successfully")
	}

	store := blocklist.NewStore(cfg.Data.BlocklistFile)
	if err := store.Load(); err != nil {
		log.Fatalf("Failed to load blocklist dataset: %v", err)
	}

	sources, err := blocklist.LoadSources(cfg.Data.SourcesFile)
	if err != nil {
		log.Fatalf("Failed to load refresh sources: %v", err)
	}
	log.Printf("Loaded %d refresh sources", len(sources))

	refresher := blocklist.NewRefresher(store, sources)

	if cfg.UpdateSecret == "" {
		log.Println("Warning: UPDATE_SECRET not set, /update-ips will reject all callers")
	}

	scheduler := cron.New()
	if cfg.Refresh.Schedule != "" {
		_, err := scheduler.AddFunc(cfg.Refresh.Schedule, func() {
			result, err := refresher.Refresh(context.Background())
			if err != nil {
				log.Printf("Scheduled refresh failed: %v", err)
				return
			}
			log.Printf("Scheduled refresh done: %d agents updated, %d warnings",
				len(result.Updated), len(result.Warnings))
		})
		if err != nil {
			log.Fatalf("Invalid refresh schedule %q: %v", cfg.Refresh.Schedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("Scheduled dataset refresh: %s", cfg.Refresh.Schedule)
	}

	srv := server.New(cfg, postgres, redis, store, refresher, responseCache)

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
