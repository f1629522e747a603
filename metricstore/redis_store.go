package metricstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Julianlamaravilla/yuno-nebula/errs"
)

// RedisStore is the production Metric Store, keyed per dimension-key
// per minute bucket, grounded on the TTL-on-write shape of the
// teacher's semantic cache engine (caching.Engine) but rewritten for
// plain integer counters instead of prompt/embedding entries.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore builds a Metric Store backed by Redis. ttl must exceed
// the longest evaluation window (spec §3: "TTL strictly greater than
// the longest evaluation window").
func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "metricstore").Logger(),
	}
}

func (s *RedisStore) bucketRedisKey(key string, minute time.Time) string {
	return fmt.Sprintf("metric:%s:%d", key, minute.Unix())
}

// Incr adds delta to the bucket and refreshes its TTL (spec §4.2:
// "ttl-refresh-on-write").
func (s *RedisStore) Incr(ctx context.Context, key string, at time.Time, delta int64) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	rk := s.bucketRedisKey(key, bucketMinute(at))
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, rk, delta)
	pipe.Expire(ctx, rk, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.NewTransient("metricstore.incr", err.Error())
	}
	if incr.Val() < 0 {
		return errs.NewInvariant("negative_counter", fmt.Sprintf("bucket %s went negative: %d", rk, incr.Val()))
	}
	return nil
}

// RangeSum sums buckets in [start, end).
func (s *RedisStore) RangeSum(ctx context.Context, key string, start, end time.Time) (int64, error) {
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

// SeriesSum reads one value per minute bucket in [start, end).
func (s *RedisStore) SeriesSum(ctx context.Context, key string, start, end time.Time) ([]BucketValue, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	startM := bucketMinute(start)
	endM := bucketMinute(end)

	var minutes []time.Time
	for m := startM; m.Before(endM); m = m.Add(time.Minute) {
		minutes = append(minutes, m)
	}
	if len(minutes) == 0 {
		return nil, nil
	}

	rks := make([]string, len(minutes))
	for i, m := range minutes {
		rks[i] = s.bucketRedisKey(key, m)
	}

	vals, err := s.client.MGet(ctx, rks...).Result()
	if err != nil {
		return nil, errs.NewTransient("metricstore.range_sum", err.Error())
	}

	out := make([]BucketValue, len(minutes))
	for i, m := range minutes {
		var v int64
		if vals[i] != nil {
			if s, ok := vals[i].(string); ok {
				fmt.Sscanf(s, "%d", &v)
			}
		}
		out[i] = BucketValue{Minute: m, Value: v}
	}
	return out, nil
}
