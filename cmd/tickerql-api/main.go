package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tickerql/tickerql/internal/api"
	"github.com/tickerql/tickerql/internal/auth"
	"github.com/tickerql/tickerql/internal/config"
	"github.com/tickerql/tickerql/internal/maintenance"
	"github.com/tickerql/tickerql/internal/nl2sql"
	"github.com/tickerql/tickerql/internal/observability"
	"github.com/tickerql/tickerql/internal/query"
	duckdbengine "github.com/tickerql/tickerql/internal/query/duckdb"
	pgexecutor "github.com/tickerql/tickerql/internal/query/postgres"
	s3store "github.com/tickerql/tickerql/internal/storage/s3"
	storepostgres "github.com/tickerql/tickerql/internal/store/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv("tickerql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, err := storepostgres.Open(context.Background(), cfg.Store)
	if err != nil {
		logger.Error("failed to open store db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	repo := storepostgres.NewRepository(db)

	readiness := []api.ReadinessCheck{repo.HealthCheck}
	var (
		objectStore        *s3store.Store
		maintenanceService *maintenance.Service
	)
	if cfg.Query.Engine == config.EngineDuckDB {
		objectStore, err = s3store.New(context.Background(), cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		readiness = append(readiness, objectStore.HealthCheck)
		maintenanceService = &maintenance.Service{
			Store:       repo,
			ObjectStore: objectStore,
			Config:      maintenance.Config{IntegrityInterval: cfg.Maintenance.IntegrityInterval},
			Logger:      logger,
		}
	}
	executor := newExecutor(cfg, db, objectStore)

	generator, err := nl2sql.NewFromConfig(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize sql generator", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.AI.PullOnStartup && cfg.AI.Provider == config.ProviderOllama {
		if err := pullStartupModels(cfg.AI, logger); err != nil {
			logger.Error("failed to pull startup models", slog.Any("error", err))
			os.Exit(1)
		}
	}

	deps := api.Dependencies{
		Logger:    logger,
		Generator: generator,
		Resolver: query.NewResolver(
			query.WithGenerator(generator),
			query.WithExecutor(executor),
			query.WithLogger(logger),
		),
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if maintenanceService != nil {
		deps.Maintenance = maintenanceService
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("api key auth enabled", slog.Int("keys", validator.Len()))
		deps.AuthMiddleware = auth.Middleware(logger, validator, auth.RoleQueryReader)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if maintenanceService != nil {
		go func() {
			if err := maintenanceService.Run(ctx); err != nil {
				logger.Error("maintenance loop failed", slog.Any("error", err))
			}
		}()
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("engine", string(cfg.Query.Engine)),
			slog.String("provider", string(cfg.AI.Provider)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

// newExecutor wraps the configured engine with the query guards.
// objectStore is only used by the duckdb engine.
func newExecutor(cfg config.Config, db *sql.DB, objectStore *s3store.Store) query.Executor {
	var executor query.Executor
	if cfg.Query.Engine == config.EngineDuckDB {
		executor = duckdbengine.NewExecutor(objectStore, "")
	} else {
		executor = pgexecutor.NewExecutor(db)
	}

	if cfg.Query.ReadOnly {
		executor = query.ReadOnly(executor)
	}
	executor = query.MaxRows(executor, cfg.Query.MaxRows)
	return query.Timeout(executor, cfg.Query.Timeout)
}

func pullStartupModels(cfg config.AIConfig, logger *slog.Logger) error {
	puller, err := nl2sql.NewModelPuller(cfg.BaseURL, cfg.PullTimeout, logger)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if cfg.PullTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.PullTimeout)
		defer cancel()
	}
	return puller.PullAll(ctx, cfg.StartupModels)
}
