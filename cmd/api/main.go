package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"redbead/internal/backend"
	"redbead/internal/config"
	"redbead/internal/db"
	"redbead/internal/httpserver"
	"redbead/internal/pkg/limiter"
	"redbead/internal/pkg/logx"
	"redbead/internal/repository/kv"
	"redbead/internal/service/cartcache"
	"redbead/internal/session"
)

const (
	cartCacheMaxAge = time.Minute
	limiterSweep    = 5 * time.Minute
)

func main() {
	cfg := config.FromEnv()
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logger := logx.For("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("open client storage")
	}
	defer closeStorage()

	api, err := backend.New(cfg.BackendBaseURL, cfg.BackendTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("init backend client")
	}

	clock := clockwork.NewRealClock()
	ipLimiter := limiter.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	go ipLimiter.Run(ctx, limiterSweep)

	mounts := httpserver.NewMounts()
	srv, err := httpserver.New(cfg.HTTPAddr, httpserver.Deps{
		Config:  cfg,
		Storage: storage,
		Carts:   cartcache.New(kv.Scoped(storage, "cache"), clock, cartCacheMaxAge, logx.For("cartcache")),
		Backend: func(r *http.Request) session.Backend {
			return api.WithCredentials(backend.CredentialsFrom(r))
		},
		Clock:   clock,
		Limiter: ipLimiter,
		Mounts:  mounts,
		Logger:  logx.For("http"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}
	srv.RegisterOnShutdown(mounts.CloseAll)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("received signal, shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Int("open_mounts", mounts.Len()).Msg("server stopped")
	}
}

// openStorage builds the client-storage backend selected by cfg.
func openStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (kv.Store, func(), error) {
	switch cfg.StorageBackend {
	case "memory", "":
		logger.Warn().Msg("using in-memory client storage; state is lost on restart")
		return kv.NewMemory(), func() {}, nil

	case "postgres":
		pool, err := db.Connect(ctx, cfg.DBConnString, db.DefaultPoolOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return kv.NewPostgres(pool), pool.Close, nil

	case "redis":
		store, closeFn, err := kv.NewRedis(ctx, kv.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { logClose(logger, "redis", closeFn) }, nil

	case "badger":
		store, closeFn, err := kv.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { logClose(logger, "badger", closeFn) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func logClose(logger zerolog.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error().Err(err).Str("storage", what).Msg("close storage")
	}
}
