package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/app"
	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/crm/customers"
	"github.com/meridian-crm/meridian-crm/internal/crm/quotations"
	"github.com/meridian-crm/meridian-crm/internal/observability"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/roles"
	"github.com/meridian-crm/meridian-crm/jobs"
)

func main() {
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

	metrics := observability.NewMetrics()

	rolesRepo := roles.NewRepository(pool)
	authzCache := authz.NewCache(cfg.AuthzCacheTTL)
	resolver := authz.NewResolver(rolesRepo, authzCache, logger)

	authService := auth.NewService(auth.NewRepository(pool))
	customersService := customers.NewService(customers.NewRepository(pool), resolver)
	quotationsService := quotations.NewService(quotations.NewRepository(pool), customersService, resolver)

	pruneJob := jobs.NewSessionsPruneJob(authService, logger, metrics)
	expireJob := jobs.NewQuotationsExpireJob(quotationsService, logger, metrics)

	now := time.Now().UTC()
	pruneTask, err := jobs.NewSessionsPruneTask(now)
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}
	expireTask, err := jobs.NewQuotationsExpireTask(now)
	if err != nil {
		logger.Error("build expire task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionsPrune, Handler: pruneJob.Handle},
			{Type: jobs.TaskQuotationsExpire, Handler: expireJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 3 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 4 * * *", Task: expireTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
