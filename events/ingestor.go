package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
	"github.com/Julianlamaravilla/yuno-nebula/eventlog"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
)

// IngestResult is returned to the HTTP layer on a successful ingest.
type IngestResult struct {
	EventID    string
	AcceptedAt time.Time
}

// Ingestor validates, persists, and fans an event out to the Metric
// Store (spec §4.1). Concurrent calls are bounded by an internal
// semaphore (spec §5: "one logical task per inbound event, bounded by
// a worker pool"); when the semaphore is saturated, Ingest returns a
// TransientError so the HTTP layer can answer 503 (spec §4.1
// back-pressure).
type Ingestor struct {
	log     eventlog.Store
	metrics metricstore.Store
	logger  zerolog.Logger

	slots chan struct{}

	mu         sync.Mutex
	lastStamp  time.Time
}

// NewIngestor builds an Ingestor with the given concurrency bound.
func NewIngestor(log eventlog.Store, metrics metricstore.Store, queueSize int, logger zerolog.Logger) *Ingestor {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Ingestor{
		log:     log,
		metrics: metrics,
		logger:  logger.With().Str("component", "ingestor").Logger(),
		slots:   make(chan struct{}, queueSize),
	}
}

// stampReceivedAt assigns a server timestamp that is monotonically
// non-decreasing within this ingestor instance (spec §3 invariant).
func (in *Ingestor) stampReceivedAt() time.Time {
	in.mu.Lock()
	defer in.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(in.lastStamp) {
		now = in.lastStamp.Add(time.Nanosecond)
	}
	in.lastStamp = now
	return now
}

// Ingest validates and persists one inbound event.
func (in *Ingestor) Ingest(ctx context.Context, inbound InboundEvent, rawBody []byte) (*IngestResult, error) {
	select {
	case in.slots <- struct{}{}:
	default:
		return nil, errs.NewTransient("ingest", "event log queue saturated")
	}
	defer func() { <-in.slots }()

	if err := inbound.Validate(); err != nil {
		return nil, err
	}

	receivedAt := in.stampReceivedAt()
	event, err := ToEvent(inbound, receivedAt, json.RawMessage(rawBody))
	if err != nil {
		return nil, err
	}

	appendCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := in.log.Append(appendCtx, event); err != nil {
		return nil, err
	}

	in.fanOutCounters(ctx, event)

	return &IngestResult{EventID: event.EventID, AcceptedAt: receivedAt}, nil
}

// fanOutCounters increments every pre-declared dimension key. Failures
// are logged, never surfaced: the Event Log append already committed,
// so the event is durable even if a counter update is lost (spec
// §4.1: "the event log is the source of truth; metrics are best-effort
// aggregates rebuildable in principle").
func (in *Ingestor) fanOutCounters(ctx context.Context, e *Event) {
	keys := e.DimensionKeys()
	var wg sync.WaitGroup
	wg.Add(len(keys))
	for _, key := range keys {
		go func(key string) {
			defer wg.Done()
			incrCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			if err := in.metrics.Incr(incrCtx, key, e.ReceivedAt, 1); err != nil {
				in.logger.Warn().Err(err).Str("key", key).Str("event_id", e.EventID).Msg("metric increment failed")
			}
		}(key)
	}
	wg.Wait()
}
