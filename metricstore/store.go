// Package metricstore implements the bucketed integer counters the
// Ingestor writes to and the Detector reads from (spec §3, §4.2).
package metricstore

import (
	"context"
	"time"
)

// Store is the Metric Store contract: atomic per-bucket increment and
// range-summed reads. Implementations guarantee per-bucket atomicity
// only — never cross-bucket atomicity (spec §3).
type Store interface {
	// Incr atomically adds delta to the counter for key at the minute
	// bucket containing at. Buckets are created lazily and expire via
	// TTL (spec §4.2).
	Incr(ctx context.Context, key string, at time.Time, delta int64) error

	// RangeSum sums the counter for key over minute buckets in
	// [start, end). Missing (expired or never-written) buckets count as
	// zero.
	RangeSum(ctx context.Context, key string, start, end time.Time) (int64, error)

	// SeriesSum returns one sum per minute bucket in [start, end), in
	// chronological order — used for trend confirmation's per-minute
	// sub-window check (spec §4.4.1) and the /metrics/recent endpoint.
	SeriesSum(ctx context.Context, key string, start, end time.Time) ([]BucketValue, error)
}

// BucketValue is one minute bucket's value, timestamped at the bucket's
// start.
type BucketValue struct {
	Minute time.Time
	Value  int64
}

// bucketMinute truncates a timestamp to its one-minute bucket boundary
// (spec §4.2: "Bucket granularity is one minute").
func bucketMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}
