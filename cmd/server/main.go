package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"kasirtoko/backend/internal/cache"
	"kasirtoko/backend/internal/checkout"
	"kasirtoko/backend/internal/config"
	"kasirtoko/backend/internal/httpapi"
	"kasirtoko/backend/internal/logging"
	"kasirtoko/backend/internal/pricing"
	"kasirtoko/backend/internal/service"
	"kasirtoko/backend/internal/store"
	"kasirtoko/backend/internal/store/memory"
	pgstore "kasirtoko/backend/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogPretty)
	if !cfg.LogPretty {
		gin.SetMode(gin.ReleaseMode)
	}

	policy, err := validateConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if cfg.DatabaseMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatal().Err(err).Msg("schema migration failed")
			}
			log.Info().Msg("schema migrated")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Str("repository", "postgres").Msg("repository ready")
	} else {
		repo = memory.NewSeeded()
		log.Info().Str("repository", "memory").Msg("repository ready")
	}

	summaryCache := cache.SummaryCache(cache.NoopSummaryCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache")
		} else {
			summaryCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("cache", "redis").Msg("cache ready")
		}
	} else {
		log.Info().Str("cache", "noop").Msg("cache ready")
	}

	svc := service.New(repo, service.Options{
		Checkout: checkout.Config{
			MaxAttempts:   cfg.CheckoutMaxAttempts,
			CommitTimeout: cfg.CheckoutCommitTimeout,
			Backoff:       cfg.CheckoutRetryBackoff,
			ProfitPolicy:  policy,
		},
		SummaryCache: summaryCache,
		SummaryTTL:   cfg.ReportCacheTTL,
		Location:     cfg.Location(),
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigins:         cfg.AllowedOrigins,
		LoginAttemptsPerMinute: cfg.LoginAttemptsPerMin,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("POS backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func validateConfig(cfg config.Config) (pricing.ProfitPolicy, error) {
	if len(cfg.AuthSecret) < 32 {
		return "", fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	policy, err := pricing.ParsePolicy(cfg.ProfitPolicy)
	if err != nil {
		return "", fmt.Errorf("PROFIT_POLICY: %w", err)
	}
	if cfg.CheckoutCommitTimeout <= 0 {
		return "", fmt.Errorf("CHECKOUT_COMMIT_TIMEOUT_SECONDS must be positive")
	}
	return policy, nil
}
