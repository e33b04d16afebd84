package database

import (
	"context"
	"fmt"

	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient creates and validates a Redis client. Redis holds the
// phase anchors and the blob cleanup queue, so every command shares the
// store timeout.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opt.ClientName = applicationName
	opt.DialTimeout = cfg.StoreTimeout
	opt.ReadTimeout = cfg.StoreTimeout
	opt.WriteTimeout = cfg.StoreTimeout
	opt.PoolTimeout = cfg.StoreTimeout
	opt.MaxRetries = -1

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}
