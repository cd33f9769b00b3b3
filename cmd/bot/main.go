// Package main is the entry point for the crypto explorer bot.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"crypto-explorer-bot/internal/bot"
	"crypto-explorer-bot/internal/cache"
	"crypto-explorer-bot/internal/config"
	"crypto-explorer-bot/internal/market"
	"crypto-explorer-bot/internal/pkg/db"
	"crypto-explorer-bot/internal/pkg/lock"
	"crypto-explorer-bot/internal/repository"
	"crypto-explorer-bot/internal/service"
	"crypto-explorer-bot/internal/storage"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Logging.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Listing cache storage
	kv, closeKV, err := openKV(ctx, cfg, dbPool)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("Failed to open cache storage")
	}
	defer closeKV.Close()
	log.Info().Str("backend", cfg.Cache.Backend).Dur("validity", cfg.Cache.Validity).Msg("Listing cache ready")

	listings := cache.NewListingCache(kv, cache.WithValidity(cfg.Cache.Validity))

	marketClient := market.NewClient(&market.Config{
		BaseURL:    cfg.Market.BaseURL,
		VsCurrency: cfg.Market.VsCurrency,
		PerPage:    cfg.Market.PerPage,
		Timeout:    cfg.Market.Timeout,
		APIKey:     cfg.Market.APIKey,
	})

	scoreService := service.NewScoreService(repository.NewScoreRepository(dbPool.Pool))

	deps := &bot.Dependencies{
		Config:   cfg,
		Lister:   marketClient,
		Details:  marketClient,
		Listings: listings,
		Scores:   scoreService,
		ChatLock: lock.NewChatLock(),
	}

	// Initialize bot
	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openKV opens the storage behind the listing cache for the configured backend.
func openKV(ctx context.Context, cfg *config.Config, pool *db.Pool) (storage.KV, io.Closer, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendPostgres:
		return repository.NewKVRepository(pool.Pool), nopCloser{}, nil
	case config.CacheBackendRedis:
		kv, err := storage.NewRedisKV(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv, nil
	case config.CacheBackendSQLite:
		kv, err := storage.NewSQLiteKV(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv, nil
	case config.CacheBackendMemory:
		return storage.NewMemoryKV(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
