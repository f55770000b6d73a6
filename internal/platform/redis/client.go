// Package redis builds the single go-redis pool shared by the KV adapter,
// the queue and the ops health check.
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"gmq/internal/platform/config"
	dErrors "gmq/pkg/domain-errors"
)

// Client is the process-wide connection pool.
type Client struct {
	*redis.Client
}

// New dials cfg.URL and pings before returning. Zero pool and timeout
// fields keep the go-redis defaults.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "GMQ_REDIS_URL is required").WithAppCode(dErrors.AppMissingConfiguration)
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "GMQ_REDIS_URL is not a redis URL")
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "redis ping failed")
	}
	return &Client{Client: client}, nil
}
