package store

import (
	"context"
	"fmt"

	"github.com/scraperwall/friendlybots/config"
)

// New opens the key/value store selected by config.CacheBackend
func New(ctx context.Context, cfg *config.Config) (KVStore, error) {
	switch cfg.CacheBackend {
	case "", config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendBadger:
		return NewBadgerDB(ctx, cfg.BadgerPath)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}

	return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}
