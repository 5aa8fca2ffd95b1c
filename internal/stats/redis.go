package stats

import (
	"context"
	"strconv"
	"strings"
	"time"

	"submitter/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis hashes: "<prefix>:total" accumulates
// forever and "<prefix>:minute:<yyyymmddhhmm>" expires after the TTL.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "submitter:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Record(ctx context.Context, record *models.SubmissionRecord) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	bucketKey := s.minuteKey(record.FinishedAt)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), record.Outcome, 1)
	pipe.HIncrBy(ctx, bucketKey, record.Outcome, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Totals reads the all-time counters.
func (s *RedisStore) Totals(ctx context.Context) (Counters, error) {
	return s.read(ctx, s.totalKey())
}

// Minute reads the counters for the minute containing at.
func (s *RedisStore) Minute(ctx context.Context, at time.Time) (Counters, error) {
	return s.read(ctx, s.minuteKey(at))
}

func (s *RedisStore) read(ctx context.Context, key string) (Counters, error) {
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(Counters, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		out[field] = n
	}
	return out, nil
}

func (s *RedisStore) totalKey() string {
	return s.prefix + ":total"
}

func (s *RedisStore) minuteKey(at time.Time) string {
	return s.prefix + ":minute:" + minuteBucket(at)
}
