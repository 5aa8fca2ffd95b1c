package stats

import (
	"context"
	"fmt"
	"time"

	"submitter/internal/models"

	"github.com/redis/go-redis/v9"
)

// New builds the store selected by config. The returned close function
// releases the Redis connection and is never nil.
func New(ctx context.Context, config models.StatsConfig) (Store, func() error, error) {
	switch config.Type {
	case models.StatsTypeMemory:
		return NewMemoryStore(), func() error { return nil }, nil
	case models.StatsTypeRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis stats ping error: %w", err)
		}

		store := NewRedisStore(rdb, WithPrefix(config.Prefix), WithTTL(config.TTL))
		return store, rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported stats type: %s", config.Type)
	}
}
