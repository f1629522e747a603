package metricstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/metricstore"
)

func TestMemoryStoreIncrAndRangeSum(t *testing.T) {
	store := metricstore.NewMemoryStore(time.Hour)
	now := time.Now().UTC()
	ctx := context.Background()

	if err := store.Incr(ctx, "k1", now, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Incr(ctx, "k1", now, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum, err := store.RangeSum(ctx, "k1", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 5 {
		t.Fatalf("expected sum 5, got %d", sum)
	}
}

func TestMemoryStoreSeriesSumFillsMissingBucketsWithZero(t *testing.T) {
	store := metricstore.NewMemoryStore(time.Hour)
	now := time.Now().UTC().Truncate(time.Minute)
	ctx := context.Background()

	store.Incr(ctx, "k1", now, 7)

	series, err := store.SeriesSum(ctx, "k1", now, now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 one-minute buckets, got %d", len(series))
	}
	if series[0].Value != 7 {
		t.Fatalf("expected first bucket to carry the written value, got %d", series[0].Value)
	}
	if series[1].Value != 0 || series[2].Value != 0 {
		t.Fatalf("expected unwritten buckets to read zero, got %+v", series[1:])
	}
}

func TestMemoryStoreBucketExpiresAfterTTL(t *testing.T) {
	store := metricstore.NewMemoryStore(10 * time.Millisecond)
	now := time.Now().UTC()
	ctx := context.Background()

	store.Incr(ctx, "k1", now, 9)
	time.Sleep(30 * time.Millisecond)

	sum, err := store.RangeSum(ctx, "k1", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 0 {
		t.Fatalf("expected expired bucket to read as zero, got %d", sum)
	}
}
