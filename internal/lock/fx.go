package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/customsledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "customsledger:lock:"

var Module = fx.Module("lock",
	fx.Provide(NewLocker),
)

// NewLocker returns a redis-backed Locker when LOCK_REDIS_ADDR is set and a
// NoopLocker otherwise.
func NewLocker(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	log = log.Named("lock")
	if !cfg.Lock.Enabled() {
		log.Info("redis lock disabled, relying on database row locks")
		return NoopLocker{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Lock.RedisAddr,
		Password: cfg.Lock.RedisPassword,
		DB:       cfg.Lock.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	log.Info("redis lock enabled", zap.String("addr", cfg.Lock.RedisAddr))
	return NewRedisLocker(client, keyPrefix)
}
