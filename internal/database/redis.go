package database

import (
	"context"
	"fmt"

	"github.com/mekongwire/reader-pulse/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDB wraps the Redis connection backing the article heart counters.
type RedisDB struct {
	Client *redis.Client
	logger *zap.Logger
}

// NewRedisDB connects to the heart-counter store.
func NewRedisDB(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// Heart increments are single-command round trips; a modest pool
		// keeps up with the public endpoint's rate limit.
		PoolSize: 50,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to heart-counter store: %w", err)
	}

	logger.Info("heart-counter store connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
	)

	return &RedisDB{
		Client: client,
		logger: logger,
	}, nil
}

// Close closes the heart-counter store connection.
func (r *RedisDB) Close() error {
	if r.Client != nil {
		r.logger.Info("heart-counter store connection closed")
		return r.Client.Close()
	}
	return nil
}

// Health reports whether the heart-counter store is reachable. Surfaced
// by the health endpoint.
func (r *RedisDB) Health(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
