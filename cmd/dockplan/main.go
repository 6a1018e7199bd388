package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dockplan/dockplan/internal/app"
	"github.com/dockplan/dockplan/internal/clients"
	"github.com/dockplan/dockplan/internal/deviations"
	"github.com/dockplan/dockplan/internal/platform/db"
	"github.com/dockplan/dockplan/internal/scheduling"
	"github.com/dockplan/dockplan/internal/sheetsync"
	"github.com/dockplan/dockplan/internal/unmet"
	"github.com/dockplan/dockplan/jobs"
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
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	schedRepo := scheduling.NewRepository(pool)
	palletCfg := scheduling.NewPalletConfigSource(schedRepo, redisClient, cfg.SampiConfigTTL, logger)
	planner := scheduling.NewSplitPlanner(scheduling.SampiMode(cfg.SampiMode))

	schedService := scheduling.NewService(pool, planner, palletCfg, logger)
	schedService.SetNotifier(sheetsync.NewDispatcher(queue, logger))

	clientService := clients.NewService(pool)
	unmetService := unmet.NewService(pool)
	deviationService := deviations.NewService(pool)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterConfig{
		Middleware: app.MiddlewareStack(app.MiddlewareConfig{Logger: logger, Config: cfg}),
		Handlers: []app.RouteMounter{
			scheduling.NewHandler(logger, schedService),
			clients.NewHandler(logger, clientService),
			unmet.NewHandler(logger, unmetService),
			deviations.NewHandler(logger, deviationService),
		},
		Jobs: jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
