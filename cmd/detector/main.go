// Command detector runs the periodic rule-evaluation tick, the
// Incident lifecycle, and the LLM Enricher worker pool (spec §4.4,
// §4.5, §5). Exactly one Detector instance may run against a given
// Incident Store at a time, enforced by a Redis advisory lock — a
// second instance makes one non-blocking acquisition attempt, fails it,
// and exits rather than racing the first. Wiring order mirrors cmd/ingestor, with the advisory
// lock acquired before any background loop starts.
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
	"github.com/Julianlamaravilla/yuno-nebula/enrich"
	"github.com/Julianlamaravilla/yuno-nebula/eventlog"
	"github.com/Julianlamaravilla/yuno-nebula/logger"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
	"github.com/Julianlamaravilla/yuno-nebula/observability"
	"github.com/Julianlamaravilla/yuno-nebula/redisclient"
	"github.com/Julianlamaravilla/yuno-nebula/rules"
)

// Exit codes (spec §6): 0 normal shutdown, 1 config error, 2
// dependency unavailable or advisory lock held, 130 interrupted.
const (
	exitOK              = 0
	exitConfigError     = 1
	exitDependencyError = 2
	exitInterrupted     = 130
)

const detectorLockKey = "detector_singleton"

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

	lock := redisclient.NewAdvisoryLock(redisClient, detectorLockKey, 3*cfg.TickInterval)
	acquireCtx, acquireCancel := context.WithTimeout(context.Background(), 5*time.Second)
	acquired, err := lock.Acquire(acquireCtx)
	acquireCancel()
	if err != nil {
		appLogger.Error().Err(err).Msg("failed to contact Redis while acquiring advisory lock")
		os.Exit(exitDependencyError)
	}
	if !acquired {
		appLogger.Error().Str("key", detectorLockKey).Msg("another detector instance already holds the advisory lock")
		os.Exit(exitDependencyError)
	}
	lock.StartRenewal()
	defer lock.Release()

	ruleRegistry := rules.NewRegistry(appLogger)
	refresher := rules.NewSnapshotRefresher(ruleRegistry, cfg.RuleRefreshInterval, appLogger)
	refresher.Start()
	defer refresher.Stop()

	incidents := detector.NewIncidentStore()

	evaluator := &detector.Evaluator{
		Metrics:         metricStore,
		Log:             logStore,
		Incidents:       incidents,
		WindowMinutes:   cfg.WindowMinutesRate,
		MinConsecutive:  int64(cfg.MinConsecutiveErrors),
		RecoveryThresh:  cfg.RecoveryThreshold,
		CooldownSeconds: cfg.CooldownSeconds,
		Logger:          appLogger,
	}

	det := detector.NewDetector(ruleRegistry, evaluator, cfg.TickInterval, appLogger)

	telemetry := observability.NewMetrics()
	det.SetMetrics(telemetry)

	var provider enrich.Provider
	switch cfg.LLMProvider {
	case "gemini":
		provider = enrich.NewGeminiProvider(cfg.GeminiAPIKey, "gemini-1.5-flash", cfg.LLMTimeout)
	case "openai":
		provider = enrich.NewOpenAIProvider(cfg.OpenAIAPIKey, "gpt-4o-mini", cfg.LLMTimeout)
	default:
		provider = enrich.NoneProvider{}
	}
	enricher := enrich.NewEnricher(incidents, provider, cfg.EnricherWorkers, cfg.LLMTimeout, cfg.LLMMaxRetries, appLogger)
	enricher.SetMetrics(telemetry)
	det.OnEnriching(enricher.Enqueue)

	pagerCfg := observability.DefaultPagerDutyConfig()
	pagerCfg.RoutingKey = cfg.PagerDutyRoutingKey
	pagerCfg.Enabled = cfg.PagerDutyEnabled
	pager := observability.NewPagerDutyClient(pagerCfg, appLogger)
	det.OnInvariantViolation(func(invariant, message string) {
		if err := pager.PageInvariant(invariant, message); err != nil {
			appLogger.Error().Err(err).Str("invariant", invariant).Msg("failed to page invariant violation")
		}
	})

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	healthMux.Handle("/metrics", telemetry.Handler())
	healthSrv := &http.Server{Addr: cfg.DetectorAddr, Handler: healthMux}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("detector health server failed")
		}
	}()

	enricher.Start()
	defer enricher.Stop()
	det.Start()
	defer det.Stop()

	appLogger.Info().Dur("tick_interval", cfg.TickInterval).Str("health_addr", cfg.DetectorAddr).Msg("detector running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info().Str("signal", sig.String()).Msg("shutting down detector")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("detector health server shutdown error")
	}

	// os.Exit skips deferred calls, so stop the loops and release the
	// lock explicitly before exiting.
	det.Stop()
	enricher.Stop()
	refresher.Stop()
	lock.Release()
	os.Exit(exitInterrupted)
}
