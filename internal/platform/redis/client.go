// Package redis owns the shared connection used by the result cache and the
// rate limiter. Running without Redis is a supported mode: an empty URL means
// the callers fall back to their in-memory implementations.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"prioritizer/internal/platform/config"
)

// Connect dials Redis and verifies the connection with a ping before handing
// it out. An empty URL returns (nil, nil) so the caller can pick its
// in-memory fallback. Errors never include the URL, which may carry
// credentials.
func Connect(cfg config.Redis) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
