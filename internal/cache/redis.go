package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/constants"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/models"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var _ storage.ExecutionCache = (*RedisCache)(nil)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache keeps recent execution outcomes and fans transitions out over
// Pub/Sub.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisCache(ctx context.Context, cfg RedisConfig, logger *logrus.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, logger), nil
}

// NewRedisCacheFromClient wraps an existing client, e.g. one shared with the
// flag store.
func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

func (r *RedisCache) AddRecentExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentExecutions, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentExecutions, 0, constants.MaxRecentExecutions-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent execution: %w", err)
	}
	return nil
}

func (r *RedisCache) GetRecentExecutions(ctx context.Context, limit int64) ([]*models.ExecutionRecord, error) {
	if limit <= 0 || limit > constants.MaxRecentExecutions {
		limit = constants.MaxRecentExecutions
	}

	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentExecutions, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent executions: %w", err)
	}

	out := make([]*models.ExecutionRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.ExecutionRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			r.logger.WithError(err).Warn("skipping malformed execution record")
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
