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
	"golang.org/x/sync/errgroup"

	"github.com/meridian-crm/meridian-crm/internal/app"
	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/crm/customers"
	"github.com/meridian-crm/meridian-crm/internal/crm/leads"
	"github.com/meridian-crm/meridian-crm/internal/crm/quotations"
	"github.com/meridian-crm/meridian-crm/internal/crm/tasks"
	"github.com/meridian-crm/meridian-crm/internal/observability"
	"github.com/meridian-crm/meridian-crm/internal/platform/cache"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/roles"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/users"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()

	rolesRepo := roles.NewRepository(dbpool)
	authzCache := authz.NewCache(cfg.AuthzCacheTTL)
	resolver := authz.NewResolver(rolesRepo, authzCache, logger).WithMetrics(metrics)

	usersRepo := users.NewRepository(dbpool)
	authzMiddleware := authz.Middleware{Resolver: resolver, Users: usersRepo, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersService := users.NewService(usersRepo, authzCache)
	usersHandler := users.NewHandler(logger, usersService, authzMiddleware)

	rolesService := roles.NewService(rolesRepo, authzCache)
	rolesHandler := roles.NewHandler(logger, rolesService, authzMiddleware)

	permissionsHandler := authz.NewPermissionsHandler(resolver, authzMiddleware)

	leadsRepo := leads.NewRepository(dbpool)
	leadsService := leads.NewService(leadsRepo, resolver)
	leadsHandler := leads.NewHandler(logger, leadsService, authzMiddleware)

	customersRepo := customers.NewRepository(dbpool)
	customersService := customers.NewService(customersRepo, resolver)
	customersHandler := customers.NewHandler(logger, customersService, authzMiddleware)

	quotationsRepo := quotations.NewRepository(dbpool)
	quotationsService := quotations.NewService(quotationsRepo, customersService, resolver)
	quotationsHandler := quotations.NewHandler(logger, quotationsService, authzMiddleware)

	tasksRepo := tasks.NewRepository(dbpool)
	tasksService := tasks.NewService(tasksRepo, resolver)
	tasksHandler := tasks.NewHandler(logger, tasksService, authzMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		LeadsHandler:       leadsHandler,
		CustomersHandler:   customersHandler,
		QuotationsHandler:  quotationsHandler,
		TasksHandler:       tasksHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
