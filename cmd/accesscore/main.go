package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jobready/accesscore/internal/app"
	"github.com/jobready/accesscore/internal/assignments"
	"github.com/jobready/accesscore/internal/authz"
	"github.com/jobready/accesscore/internal/observability"
	"github.com/jobready/accesscore/internal/platform/cache"
	"github.com/jobready/accesscore/internal/platform/db"
	"github.com/jobready/accesscore/internal/principals"
	"github.com/jobready/accesscore/internal/projection"
	"github.com/jobready/accesscore/internal/roles"
	"github.com/jobready/accesscore/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	authzCache := authz.NewCache(redisClient, cfg.AuthzCacheTTL, logger)
	authzService := authz.NewService(authz.NewRepository(pool), authzCache, metrics, cfg.AdminMarker)
	guard := authz.Middleware{Service: authzService, Logger: logger}

	principalService := principals.NewService(principals.NewRepository(pool), auditLogger, authzCache, logger)
	roleService := roles.NewService(roles.NewRepository(pool), auditLogger, authzCache, cfg.DeactivationPolicy(), logger)
	assignmentService := assignments.NewService(assignments.NewRepository(pool), principalService, roleService, auditLogger, authzCache, logger)
	viewBuilder := projection.NewBuilder(projection.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		PrincipalsHandler:  principals.NewHandler(logger, principalService, guard),
		RolesHandler:       roles.NewHandler(logger, roleService, guard),
		AssignmentsHandler: assignments.NewHandler(logger, assignmentService, guard),
		AuthzHandler:       authz.NewHandler(logger, authzService),
		ProjectionHandler:  projection.NewHandler(logger, viewBuilder),
		Pool:               pool,
		Metrics:            metrics,
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
