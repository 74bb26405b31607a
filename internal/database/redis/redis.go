package redis

import (
	"context"
	"fmt"
	"time"

	"document-service/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient returns nil, nil when no address is configured; callers treat a
// nil client as "feature off".
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}
