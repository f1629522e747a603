package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/detector"
	"github.com/Julianlamaravilla/yuno-nebula/observability"
)

// Enricher is a bounded worker pool that drains ENRICHING incidents
// and asks the configured Provider to explain them, grounded on the
// Ingestor's semaphore-style back-pressure pattern (events.Ingestor)
// generalized to a fixed pool of long-lived workers instead of a
// per-request slot, since enrichment work is queued, not synchronous.
type Enricher struct {
	incidents  *detector.IncidentStore
	provider   Provider
	timeout    time.Duration
	maxRetries int
	workers    int
	logger     zerolog.Logger
	metrics    *observability.Metrics

	queue chan string
	wg    sync.WaitGroup

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEnricher builds an Enricher. workers is ENRICHER_WORKERS (spec
// §6, default 4); timeout is LLM_TIMEOUT_SECONDS; maxRetries is
// LLM_MAX_RETRIES.
func NewEnricher(incidents *detector.IncidentStore, provider Provider, workers int, timeout time.Duration, maxRetries int, logger zerolog.Logger) *Enricher {
	if workers <= 0 {
		workers = 4
	}
	return &Enricher{
		incidents:  incidents,
		provider:   provider,
		timeout:    timeout,
		maxRetries: maxRetries,
		workers:    workers,
		logger:     logger.With().Str("component", "enricher").Logger(),
		queue:      make(chan string, workers*8),
		done:       make(chan struct{}),
	}
}

// SetMetrics attaches the Prometheus collectors enrichment attempts and
// retries report through. Optional.
func (e *Enricher) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// Enqueue submits an incident for enrichment. Non-blocking: if every
// worker is saturated and the queue is full, the incident is logged
// and dropped rather than blocking the Detector's tick loop — a future
// tick's recovery check or a manual re-poke can recover an incident
// stuck at enrichment_status=pending.
func (e *Enricher) Enqueue(incidentID string) {
	select {
	case e.queue <- incidentID:
	default:
		e.logger.Warn().Str("incident_id", incidentID).Msg("enrichment queue saturated, dropping")
	}
}

// Start launches the worker pool. Call Stop to shut it down.
func (e *Enricher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
	go func() {
		e.wg.Wait()
		close(e.done)
	}()
}

// Stop cancels in-flight work and waits for all workers to exit.
func (e *Enricher) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
}

func (e *Enricher) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case incidentID := <-e.queue:
			e.process(ctx, incidentID)
		}
	}
}

func (e *Enricher) process(ctx context.Context, incidentID string) {
	inc, ok := e.incidents.GetByID(incidentID)
	if !ok {
		return
	}
	if inc.State != detector.StateEnriching {
		return
	}

	prompt := BuildPrompt(inc)
	explanation, err := e.explainWithRetry(ctx, prompt)

	now := time.Now().UTC()
	if err != nil {
		e.countAttempt("failure")
		e.logger.Warn().Err(err).Str("incident_id", incidentID).Msg("enrichment failed, notifying without explanation")
		if tErr := e.incidents.TransitionToNotified(incidentID, nil, detector.EnrichmentFailed, now); tErr != nil {
			e.logger.Error().Err(tErr).Str("incident_id", incidentID).Msg("failed to transition incident after enrichment failure")
		}
		return
	}

	e.countAttempt("success")
	if tErr := e.incidents.TransitionToNotified(incidentID, &explanation, detector.EnrichmentSucceeded, now); tErr != nil {
		e.logger.Error().Err(tErr).Str("incident_id", incidentID).Msg("failed to transition incident after enrichment success")
	}
}

func (e *Enricher) countAttempt(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.EnrichmentAttemptsTotal.WithLabelValues(outcome).Inc()
}

// explainWithRetry bounds each provider attempt to timeout and retries
// failed attempts with doubling backoff (1s, then 2s, ...), mirroring
// the Event Log's retry shape (eventlog.PostgresStore.Append) — never
// more than maxRetries extra attempts, so a stuck provider cannot pin
// a worker indefinitely.
func (e *Enricher) explainWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	delay := 1 * time.Second
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if e.metrics != nil {
				e.metrics.EnrichmentRetriesTotal.Inc()
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay *= 2
		}
		explanation, err := e.callWithTimeout(ctx, prompt)
		if err == nil {
			return explanation, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// callWithTimeout gives a single provider call its own e.timeout budget
// derived fresh from the parent context, so one slow attempt can't
// starve the retries configured after it of their own time.
func (e *Enricher) callWithTimeout(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.provider.Explain(callCtx, prompt)
}
