package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/erauner12/gamesdb/internal/auth"
	"github.com/erauner12/gamesdb/internal/client"
	"github.com/erauner12/gamesdb/internal/config"
	"github.com/erauner12/gamesdb/internal/discover"
	"github.com/erauner12/gamesdb/internal/httpapi"
	"github.com/erauner12/gamesdb/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure structured logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "gamesdb").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Pretty logging for local dev (only when explicitly set to "dev")
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		figure.NewFigure("gamesdb", "", true).Print()
		fmt.Println()
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.TokenStore).Msg("failed to open token store")
	}
	defer closeStore()

	acquirer := auth.NewClientCredentialsAcquirer(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret,
		&http.Client{Timeout: cfg.RequestTimeout})
	configurator := session.NewConfigurator(store, acquirer, session.Options{
		ClientID:        cfg.ClientID,
		RequestTimeout:  cfg.RequestTimeout,
		ResourceTimeout: cfg.ResourceTimeout,
	}, cfg.ConfigureTimeout)

	limits := client.Limits{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
		MaxOpenRequests:   cfg.MaxOpenRequests,
	}
	fetcher, err := client.NewFetcher(client.NewHTTPClient(configurator, limits), cfg.APIBaseURL, cfg.PageSize)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid IGDB_API_URL")
	}

	var cache client.ImageCache
	if cfg.ImageCache {
		cache = client.NewMemoryCache()
	}
	images, err := client.NewImageFetcher(
		client.NewPublicHTTPClient(&http.Client{Timeout: cfg.ResourceTimeout}, client.Limits{}),
		cfg.ImageBaseURL, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid IGDB_IMAGE_URL")
	}

	feed := discover.New(fetcher, configurator)
	configurator.Subscribe(func(st session.State) {
		log.Info().Str("phase", st.Phase.String()).AnErr("error", st.Err).Msg("catalog session state changed")
	})
	feed.Subscribe(func(st discover.State) {
		log.Debug().
			Bool("loading", st.Loading).
			Bool("loadingMore", st.LoadingMore).
			AnErr("error", st.Err).
			Msg("discover state changed")
	})

	// Warm the session and the discover lists without blocking startup
	go func() {
		if err := feed.LoadInitial(ctx); err != nil {
			log.Warn().Err(err).Msg("initial discover load failed (will retry on refresh)")
		}
	}()

	srv := &httpapi.Server{
		Sessions: configurator,
		Fetcher:  fetcher,
		Images:   images,
		Feed:     feed,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.ResourceTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.TokenStore).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}

// openStore builds the token store selected by TOKEN_STORE
func openStore(ctx context.Context, cfg *config.Config) (auth.Store, func(), error) {
	noop := func() {}

	switch cfg.TokenStore {
	case config.StoreMemory:
		return auth.NewMemoryStore(), noop, nil

	case config.StoreFile:
		key, err := cfg.SealKey()
		if err != nil {
			return nil, noop, err
		}
		if key == nil {
			log.Warn().Str("path", cfg.TokenFile).Msg("TOKEN_SEAL_KEY not set, token file is stored unsealed")
		}
		return auth.NewFileStore(cfg.TokenFile, key), noop, nil

	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		return auth.NewRedisStore(rdb, "gamesdb"), func() { rdb.Close() }, nil

	case config.StorePostgres:
		if err := auth.MigratePostgres(cfg.DatabaseURL); err != nil {
			return nil, noop, err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("ping postgres: %w", err)
		}
		return auth.NewPostgresStore(pool), pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}
