package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"duekeeper/internal/config"
	"duekeeper/internal/repository"
	"duekeeper/internal/service"
)

// openLedger picks the ledger backend. The returned func releases it.
func openLedger(ctx context.Context, cfg config.Config, db *gorm.DB) (service.Ledger, func(), error) {
	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return repository.NewRedisLedger(rdb, cfg.LedgerTTL), func() { _ = rdb.Close() }, nil
	default:
		return repository.NewLedgerRepository(db), func() {}, nil
	}
}
