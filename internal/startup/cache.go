package startup

import (
	"context"
	"time"

	"github.com/storefront/messaging/internal/config"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/storage"
	"github.com/storefront/messaging/internal/storage/memory"
	redisstorage "github.com/storefront/messaging/internal/storage/redis"
)

// OpenCache выбирает бэкенд кеша счётчиков. Redis подключается с повторами;
// если он так и не поднялся, работаем без кеша (счётчики считаются из БД).
func OpenCache(ctx context.Context, cfg config.CacheConfig, maxWait time.Duration) storage.Cache {
	switch cfg.Backend {
	case config.CacheRedis:
		var client *redisstorage.Client
		err := retry(ctx, "redis connect", maxWait, func(ctx context.Context) error {
			c, err := redisstorage.New(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			client = c
			return nil
		})
		if err != nil {
			logger.Errorf("cache: %v, counters served uncached", err)
			return storage.Noop{}
		}
		logger.Info("cache: redis")
		return client
	case config.CacheMemory:
		logger.Info("cache: in-process memory")
		return memory.New()
	default:
		logger.Info("cache: disabled")
		return storage.Noop{}
	}
}
