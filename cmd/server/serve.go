package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prudhvinik1/seatkeeper/internal/api"
	"github.com/prudhvinik1/seatkeeper/internal/config"
	"github.com/prudhvinik1/seatkeeper/internal/database"
	"github.com/prudhvinik1/seatkeeper/internal/logging"
	"github.com/prudhvinik1/seatkeeper/internal/metrics"
	"github.com/prudhvinik1/seatkeeper/internal/ratelimit"
	"github.com/prudhvinik1/seatkeeper/internal/repositories"
	"github.com/prudhvinik1/seatkeeper/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter, closeLimiter, err := openLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	allocator := services.NewSeatAllocator(store.Devices, store.Seats)
	deps := api.Dependencies{
		Licenses:          services.NewLicenseService(store.Licenses, allocator),
		Admin:             services.NewAdminService(store.Licenses, store.Devices),
		Limiter:           limiter,
		Metrics:           metrics.NewManager(),
		RequestTimeout:    cfg.RequestTimeout,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}
	if cfg.AdminAuthEnabled() {
		deps.Auth = services.NewAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTExpiry)
	} else {
		log.Warn().Msg("JWT_SECRET not set, admin API is unauthenticated")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.NewServer(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.ServerPort).Str("store", cfg.StoreDriver).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server stopped gracefully")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*repositories.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return repositories.NewMemoryStore(), func() {}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if _, err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return repositories.NewPostgresStore(pool), pool.Close, nil
}

func openLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimitPerMinute == 0 {
		return nil, func() {}, nil
	}
	if cfg.RedisURL == "" {
		return ratelimit.NewLocalLimiter(cfg.RateLimitPerMinute, time.Minute), func() {}, nil
	}

	client, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	limiter := ratelimit.NewRedisLimiter(client, "seatkeeper:ratelimit", cfg.RateLimitPerMinute, time.Minute)
	return limiter, func() { client.Close() }, nil
}
