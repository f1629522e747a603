package eventlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/eventlog"
	"github.com/Julianlamaravilla/yuno-nebula/events"
)

func sampleEvent(id, merchant string, status events.Status, at time.Time) *events.Event {
	return &events.Event{
		EventID:    id,
		ReceivedAt: at,
		MerchantID: merchant,
		ProviderID: "p1",
		Country:    "US",
		Status:     status,
		AmountUSD:  10,
	}
}

func TestMemoryStoreAppendAndGet(t *testing.T) {
	store := eventlog.NewMemoryStore()
	e := sampleEvent("evt-1", "m1", events.StatusSucceeded, time.Now().UTC())

	if err := store.Append(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := store.Get(context.Background(), "evt-1")
	if err != nil || !ok {
		t.Fatalf("expected to find evt-1, ok=%v err=%v", ok, err)
	}
	if got.MerchantID != "m1" {
		t.Fatalf("expected merchant m1, got %s", got.MerchantID)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := eventlog.NewMemoryStore()
	_, ok, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing event")
	}
}

func TestMemoryStoreQueryFiltersByMerchantAndStatus(t *testing.T) {
	store := eventlog.NewMemoryStore()
	now := time.Now().UTC()
	ctx := context.Background()

	store.Append(ctx, sampleEvent("evt-1", "m1", events.StatusSucceeded, now))
	store.Append(ctx, sampleEvent("evt-2", "m1", events.StatusError, now.Add(time.Minute)))
	store.Append(ctx, sampleEvent("evt-3", "m2", events.StatusError, now.Add(2*time.Minute)))

	results, err := store.Query(ctx, eventlog.WindowFilter{
		MerchantID: "m1",
		Statuses:   []events.Status{events.StatusError},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].EventID != "evt-2" {
		t.Fatalf("expected only evt-2, got %+v", results)
	}
}

func TestMemoryStoreQueryOrdersNewestFirst(t *testing.T) {
	store := eventlog.NewMemoryStore()
	now := time.Now().UTC()
	ctx := context.Background()

	store.Append(ctx, sampleEvent("evt-1", "m1", events.StatusSucceeded, now))
	store.Append(ctx, sampleEvent("evt-2", "m1", events.StatusSucceeded, now.Add(time.Minute)))

	results, err := store.Query(ctx, eventlog.WindowFilter{MerchantID: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0].EventID != "evt-2" {
		t.Fatalf("expected evt-2 first (newest), got %+v", results)
	}
}
