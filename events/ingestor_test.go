package events_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
	"github.com/Julianlamaravilla/yuno-nebula/eventlog"
	"github.com/Julianlamaravilla/yuno-nebula/events"
	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func validInbound() events.InboundEvent {
	return events.InboundEvent{
		EventID:    "evt-1",
		MerchantID: "m1",
		ProviderID: "p1",
		Country:    "US",
		Status:     "SUCCEEDED",
		Amount:     events.Amount{Value: 10, Currency: "USD"},
	}
}

func TestIngestorAcceptsValidEvent(t *testing.T) {
	logStore := eventlog.NewMemoryStore()
	metricStore := metricstore.NewMemoryStore(time.Hour)
	in := events.NewIngestor(logStore, metricStore, 4, discardLogger())

	res, err := in.Ingest(context.Background(), validInbound(), []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EventID != "evt-1" {
		t.Fatalf("expected event id evt-1, got %s", res.EventID)
	}

	stored, ok, err := logStore.Get(context.Background(), "evt-1")
	if err != nil || !ok {
		t.Fatalf("expected event to be persisted, ok=%v err=%v", ok, err)
	}
	if stored.AmountUSD != 10 {
		t.Fatalf("expected amount_usd 10, got %v", stored.AmountUSD)
	}
}

func TestIngestorRejectsInvalidEvent(t *testing.T) {
	logStore := eventlog.NewMemoryStore()
	metricStore := metricstore.NewMemoryStore(time.Hour)
	in := events.NewIngestor(logStore, metricStore, 4, discardLogger())

	bad := validInbound()
	bad.Country = "usa"
	if _, err := in.Ingest(context.Background(), bad, nil); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestIngestorReturnsTransientWhenSaturated(t *testing.T) {
	logStore := eventlog.NewMemoryStore()
	metricStore := metricstore.NewMemoryStore(time.Hour)

	block := make(chan struct{})
	release := make(chan struct{})
	logStore2 := &blockingEventLog{inner: logStore, block: block, release: release}
	in := events.NewIngestor(logStore2, metricStore, 1, discardLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		in.Ingest(context.Background(), validInbound(), nil)
	}()
	<-block

	second := validInbound()
	second.EventID = "evt-2"
	_, err := in.Ingest(context.Background(), second, nil)
	close(release)
	wg.Wait()

	if err == nil {
		t.Fatal("expected a transient error while the single slot was held")
	}
	if _, ok := err.(*errs.TransientError); !ok {
		t.Fatalf("expected *errs.TransientError, got %T", err)
	}
}

// blockingEventLog lets a test hold the Ingestor's one concurrency slot
// open for a controlled window to exercise the saturation path.
type blockingEventLog struct {
	inner   eventlog.Store
	block   chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEventLog) Append(ctx context.Context, e *events.Event) error {
	b.once.Do(func() { close(b.block) })
	<-b.release
	return b.inner.Append(ctx, e)
}

func (b *blockingEventLog) Get(ctx context.Context, id string) (*events.Event, bool, error) {
	return b.inner.Get(ctx, id)
}

func (b *blockingEventLog) Query(ctx context.Context, filter eventlog.WindowFilter) ([]*events.Event, error) {
	return b.inner.Query(ctx, filter)
}

func (b *blockingEventLog) Close() error { return b.inner.Close() }
