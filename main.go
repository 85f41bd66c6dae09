package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/purchasewatcher/config"
	"sjsage522/purchasewatcher/internal/monitor"
	"sjsage522/purchasewatcher/internal/server"
	"sjsage522/purchasewatcher/internal/storefront"
	"sjsage522/purchasewatcher/logger"
	"sjsage522/purchasewatcher/services/cache"
	"sjsage522/purchasewatcher/services/publisher"
	"sjsage522/purchasewatcher/services/store"
	"sjsage522/purchasewatcher/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("sites", len(cfg.Sites)).
		Int("interval_minutes", cfg.IntervalMinutes).
		Str("schedule", cfg.CrawlSchedule).
		Msg("Starting application")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	fetcher := storefront.NewClient(cfg.RequestTimeout, services.Cache, cfg.BlockTime)
	mon := monitor.New(fetcher, services.Store, services.Cache, services.Publisher)
	w := worker.NewWorker(mon, cfg.Sites, services.Publisher, cfg.CrawlSchedule)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.New(server.Options{
			Runner:          mon,
			Bulk:            w,
			Store:           services.Store,
			ProductURL:      cfg.ProductURL,
			IntervalMinutes: cfg.IntervalMinutes,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Start(ctx)
	}()

	serverDone := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
		close(serverDone)
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-serverDone:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server exited with error")
		}
		cancel()
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := <-workerDone; err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
	}
}

// Services holds all the initialized services
type Services struct {
	Store     store.Store
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.Store != nil {
		if err := s.Store.Close(ctx); err != nil {
			logger.LogError("store", err, "Failed to close store")
		}
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes all required services.
// Optional backends that are not configured fall back to local implementations.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	// Initialize store
	switch {
	case !cfg.StoreConfigured():
		logger.Warn("MONGODB_URL not set, database not configured")
	case cfg.StoreDriver == "memory":
		services.Store = store.NewMemoryStore()
		logger.Info("Using in-memory store")
	default:
		services.Store = store.NewMongoStore(cfg.MongoURL, cfg.Database, cfg.Collection)
		logger.Info("Using MongoDB store %s.%s", cfg.Database, cfg.Collection)
	}

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Msg("Memcache unreachable, using in-memory cache")
			services.Cache = cache.NewMemoryCache()
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	} else {
		services.Cache = cache.NewMemoryCache()
	}

	// Initialize publisher
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("Redis unreachable, publishing may fail")
		}
		services.Publisher = redisPublisher
		logger.Info("Publishing to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	} else {
		services.Publisher = publisher.Noop{}
	}

	return services
}
