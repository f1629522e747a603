package metricstore

import (
	"context"
	"sync"
	"time"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
)

type bucketEntry struct {
	value     int64
	expiresAt time.Time
}

// MemoryStore is a dependency-free Metric Store used by tests (both
// entry points always build a RedisStore), grounded on the same TTL-sweep shape as
// RedisStore / the teacher's caching.Engine, backed by a mutex map
// instead of Redis.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	ttl     time.Duration
}

// NewMemoryStore builds an in-memory Metric Store with the given
// bucket TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucketEntry),
		ttl:     ttl,
	}
}

func bucketMapKey(key string, minute time.Time) string {
	return key + "\x00" + minute.Format(time.RFC3339)
}

func (s *MemoryStore) Incr(ctx context.Context, key string, at time.Time, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mk := bucketMapKey(key, bucketMinute(at))
	now := time.Now()
	e, ok := s.buckets[mk]
	if !ok || e.expiresAt.Before(now) {
		e = &bucketEntry{}
		s.buckets[mk] = e
	}
	e.value += delta
	e.expiresAt = now.Add(s.ttl)
	if e.value < 0 {
		return errs.NewInvariant("negative_counter", "bucket "+mk+" went negative")
	}
	return nil
}

func (s *MemoryStore) RangeSum(ctx context.Context, key string, start, end time.Time) (int64, error) {
	series, err := s.SeriesSum(ctx, key, start, end)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, bv := range series {
		total += bv.Value
	}
	return total, nil
}

func (s *MemoryStore) SeriesSum(ctx context.Context, key string, start, end time.Time) ([]BucketValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startM := bucketMinute(start)
	endM := bucketMinute(end)
	now := time.Now()

	var out []BucketValue
	for m := startM; m.Before(endM); m = m.Add(time.Minute) {
		mk := bucketMapKey(key, m)
		var v int64
		if e, ok := s.buckets[mk]; ok && e.expiresAt.After(now) {
			v = e.value
		}
		out = append(out, BucketValue{Minute: m, Value: v})
	}
	return out, nil
}

// sweep drops expired buckets; callers may invoke this periodically to
// bound memory in long-running test processes. Not required for
// correctness since reads already treat expired buckets as zero.
func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, e := range s.buckets {
		if e.expiresAt.Before(now) {
			delete(s.buckets, k)
		}
	}
}
