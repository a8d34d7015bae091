package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/pricewatch/config"
	"sjsage522/pricewatch/internal/classifier"
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/internal/exclusion"
	"sjsage522/pricewatch/internal/ledger"
	"sjsage522/pricewatch/internal/scanner"
	"sjsage522/pricewatch/internal/selector"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/cache"
	"sjsage522/pricewatch/services/publisher"
	"sjsage522/pricewatch/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("base_url", cfg.BaseURL).
		Str("max_price", cfg.MaxPrice.String()).
		Int("workers", cfg.ParallelWorkers).
		Dur("check_interval", cfg.CheckInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	filter, err := exclusion.New(cfg.ExcludedURLPatterns)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid exclusion patterns")
	}

	scan := scanner.New(
		crawler.NewHTTPFetcher(nil, services.Cache, cfg.BlockTime),
		classifier.New(selector.NewResolver(), filter),
		services.Ledger,
		logger.ForScanner(),
	)

	// Create and start worker
	w := worker.NewWorker(
		ctx,
		scan,
		services.Ledger,
		services.Store,
		services.Publisher,
		scanOptions(cfg),
		cfg.CheckInterval,
	)

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting price watch worker")
		workerDone <- w.Start()
	}()

	// Wait for shutdown signal or worker error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		// the worker flushes the ledger before returning
		<-workerDone
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

func scanOptions(cfg *config.Config) scanner.Options {
	return scanner.Options{
		SeedURL:                cfg.BaseURL,
		MaxPrice:               cfg.MaxPrice,
		Workers:                cfg.ParallelWorkers,
		RequestDelay:           cfg.RequestDelay,
		MaxProductsPerCategory: cfg.MaxProductsPerCategory,
		MaxPagesPerCategory:    cfg.MaxPagesPerCategory,
		SortQuery:              cfg.SortQuery,
	}
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     ledger.Store
	Ledger    *ledger.Ledger
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{Ledger: ledger.New()}
	cacheLog := logger.ForCache()

	// Initialize cache service; fall back to the in-process cache when
	// memcache is not configured or unreachable
	if cfg.MemcacheAddr != "" {
		memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcacheService.Ping(); err != nil {
			cacheLog.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, using in-memory cache")
		} else {
			services.Cache = memcacheService
			cacheLog.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}
	if services.Cache == nil {
		services.Cache = cache.NewMemoryService()
	}

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(); err != nil {
		redisPublisher.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	services.Publisher = redisPublisher

	logger.ForPublisher().Info().
		Str("addr", cfg.RedisAddr).
		Int("db", cfg.RedisDB).
		Str("stream", cfg.RedisStream).
		Msg("Connected to Redis")

	// Initialize ledger store
	store, err := ledger.OpenStore(ctx, ledger.StoreOptions{
		Backend:   ledger.Backend(cfg.LedgerBackend),
		Path:      cfg.LedgerPath,
		RedisAddr: cfg.RedisAddr,
		RedisDB:   cfg.RedisDB,
		Key:       cfg.LedgerKey,
	})
	if err != nil {
		services.Cleanup()
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	services.Store = store

	logger.ForLedger(cfg.LedgerBackend).Info().Str("path", cfg.LedgerPath).Msg("Ledger store ready")

	return services, nil
}
