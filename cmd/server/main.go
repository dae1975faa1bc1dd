// Package main provides the entry point for the article intake service.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/knowledgehub/article-intake-service/internal/assembler"
	"github.com/knowledgehub/article-intake-service/internal/config"
	"github.com/knowledgehub/article-intake-service/internal/database"
	"github.com/knowledgehub/article-intake-service/internal/matrix"
	"github.com/knowledgehub/article-intake-service/internal/observability"
	"github.com/knowledgehub/article-intake-service/internal/repository"
	httpserver "github.com/knowledgehub/article-intake-service/internal/server/http"
	"github.com/knowledgehub/article-intake-service/internal/tracker"
	"github.com/knowledgehub/article-intake-service/internal/upload"
	"github.com/knowledgehub/article-intake-service/internal/upstream"
	"github.com/knowledgehub/article-intake-service/internal/wizard"
)

const lookupFetchTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("article-intake-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Prometheus metrics.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("article_intake")
	}

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Content backend client.
	client, err := upstream.NewClient(upstream.Config{
		BaseURL:      cfg.Upstream.BaseURL,
		Timeout:      cfg.Upstream.Timeout,
		RateLimit:    cfg.Upstream.RateLimit,
		BurstSize:    cfg.Upstream.BurstSize,
		MaxRetries:   cfg.Upstream.MaxRetries,
		RetryDelay:   cfg.Upstream.RetryDelay,
		UserAgent:    cfg.Upstream.UserAgent,
		APIKey:       cfg.Upstream.APIKey,
		APIKeyHeader: cfg.Upstream.APIKeyHeader,
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("create content backend client: %w", err)
	}

	// Lookup lists are fetched once at startup and served from cache.
	lookupCtx, lookupCancel := context.WithTimeout(ctx, lookupFetchTimeout)
	lookups, err := client.FetchLookups(lookupCtx)
	lookupCancel()
	if err != nil {
		return fmt.Errorf("fetch lookup lists: %w", err)
	}
	logger.Info().Msg("lookup lists loaded")

	// Wizard session plumbing.
	sessionRepo := repository.NewPgSessionRepository(db)
	draftStore := repository.NewDraftStore(sessionRepo)
	statusTracker := tracker.NewTracker(client, cfg.Tracker, logger, metrics)
	defer statusTracker.Close()

	manager := wizard.NewManager(
		matrix.DefaultCatalog(),
		wizard.NewValidator(lookups, cfg.Upload.MaxCoverImageSize),
		draftStore,
		statusTracker,
		logger,
		metrics,
	)
	statusTracker.Subscribe(manager.HandleStatus)

	// Sweep drafts abandoned past the retention window.
	sweeper := repository.NewSweeper(sessionRepo, manager, cfg.Drafts.Retention, cfg.Drafts.SweepInterval, logger)
	go sweeper.Run(ctx)

	coordinator := upload.NewCoordinator(client, cfg.Upload, logger, metrics)
	submitter := assembler.NewSubmitter(client, logger, metrics)

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	httpSrv := httpserver.NewServer(
		httpCfg,
		manager,
		coordinator,
		submitter,
		lookups,
		db,
		logger,
		metrics,
	)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP REST API server in background.
	go func() {
		logger.Info().
			Str("address", httpCfg.Address).
			Msg("HTTP REST API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("article-intake-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down article-intake-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("article-intake-service shutdown complete")
	return nil
}
