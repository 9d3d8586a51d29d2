package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gracebooks/gracebooks/internal/app"
	"github.com/gracebooks/gracebooks/internal/audit"
	"github.com/gracebooks/gracebooks/internal/ledger"
	"github.com/gracebooks/gracebooks/internal/platform/cache"
	"github.com/gracebooks/gracebooks/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("apply schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, balance cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var balanceCache *ledger.BalanceCache
	if redisClient != nil {
		balanceCache = ledger.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)
	}

	repo := ledger.NewPGRepository(pool)
	trail := audit.NewPGLog(pool)
	registry := ledger.NewRegistry(repo, logger)
	engine := ledger.NewEngine(repo, balanceCache, logger)
	balances := ledger.NewBalanceReader(repo, balanceCache, logger)

	handler := ledger.NewHandler(logger, registry, engine, balances, trail)
	router := app.NewRouter(app.RouterDeps{
		Config: cfg,
		Ledger: handler,
	}, app.MiddlewareStack(app.MiddlewareConfig{Logger: logger, Config: cfg}))

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
