// Package store provides the short-lived key/value state of the auth flows:
// refresh-token revocation and single-use OAuth state nonces. Redis backs both
// when configured; otherwise process-local memory stores are used.
package store

import (
	"context"
	"log/slog"

	"authsvc/config"
	"authsvc/internal/domain/lifecycle"
	"authsvc/internal/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// RedisParams defines the required parameters
type RedisParams struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// NewRedisClient returns nil when Redis is disabled.
func NewRedisClient(params RedisParams) (*redis.Client, error) {
	if params.Config.Redis == nil || !params.Config.Redis.Enabled {
		return nil, nil
	}

	opts, err := redis.ParseURL(params.Config.Redis.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse redis url")
	}

	client := redis.NewClient(opts)

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping redis")
			}
			params.Logger.InfoContext(ctx, "Redis connected", slog.String("addr", opts.Addr))

			return nil
		},
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func keyPrefix(cfg *config.Config) string {
	if cfg.Redis == nil {
		return ""
	}

	return cfg.Redis.KeyPrefix
}
