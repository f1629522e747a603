// Command ingestor runs the HTTP-facing half of the telemetry pipeline:
// the Ingestor, Rule Registry, and Incident Store behind the
// /ingest, /rules, and /alerts endpoints (spec §5: the Ingestor runs as
// a worker-pooled HTTP server, separate from the Detector's single
// advisory-locked instance). Wiring order — config, logger, storage,
// background tasks, router, server, signal handling — is grounded on
// the teacher's main.go.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/config"
	"github.com/Julianlamaravilla/yuno-nebula/detector"
	"github.com/Julianlamaravilla/yuno-nebula/eventlog"
	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/logger"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
	"github.com/Julianlamaravilla/yuno-nebula/observability"
	"github.com/Julianlamaravilla/yuno-nebula/redisclient"
	"github.com/Julianlamaravilla/yuno-nebula/router"
	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

// Exit codes (spec §6): 0 normal shutdown, 1 config error, 2 dependency
// unavailable at startup, 130 interrupted (SIGINT/SIGTERM).
const (
	exitOK                = 0
	exitConfigError       = 1
	exitDependencyError   = 2
	exitInterrupted       = 130
)

func main() {
	cfg := config.Load()
	appLogger := logger.New(cfg)

	if cfg.DatabaseURL == "" {
		appLogger.Error().Msg("DATABASE_URL is required")
		os.Exit(exitConfigError)
	}

	logStore, err := eventlog.NewPostgresStore(cfg.DatabaseURL, appLogger)
	if err != nil {
		appLogger.Error().Err(err).Msg("failed to connect to the event log")
		os.Exit(exitDependencyError)
	}
	defer logStore.Close()

	redisClient, err := redisclient.New(cfg)
	if err != nil {
		appLogger.Error().Err(err).Msg("invalid REDIS_URL")
		os.Exit(exitConfigError)
	}
	if err := redisClient.Ping(); err != nil {
		appLogger.Error().Err(err).Msg("failed to connect to Redis")
		os.Exit(exitDependencyError)
	}
	defer redisClient.Close()

	metricStore := metricstore.NewRedisStore(redisClient.Raw(), time.Duration(cfg.BucketTTLSeconds)*time.Second, appLogger)

	ingestor := events.NewIngestor(logStore, metricStore, cfg.IngestQueueSize, appLogger)
	ruleRegistry := rules.NewRegistry(appLogger)
	incidents := detector.NewIncidentStore()

	refresher := rules.NewSnapshotRefresher(ruleRegistry, cfg.RuleRefreshInterval, appLogger)
	refresher.Start()
	defer refresher.Stop()

	telemetry := observability.NewMetrics()

	handlerDeps := router.Deps{
		Ingestor:  ingestor,
		Rules:     ruleRegistry,
		Incidents: incidents,
		Metrics:   metricStore,
		Telemetry: telemetry,
	}
	mux := router.New(cfg, appLogger, handlerDeps)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info().Str("addr", cfg.Addr).Msg("ingestor listening")
		serverErr <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("ingestor server failed")
			os.Exit(exitDependencyError)
		}
	case sig := <-sigCh:
		appLogger.Info().Str("signal", sig.String()).Msg("shutting down ingestor")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			appLogger.Error().Err(err).Msg("graceful shutdown failed")
			os.Exit(exitDependencyError)
		}
		os.Exit(exitInterrupted)
	}

	os.Exit(exitOK)
}
