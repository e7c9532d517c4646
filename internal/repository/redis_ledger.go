package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"duekeeper/internal/model"
)

const ledgerKeyPrefix = "duekeeper:ledger:"

// RedisLedger keeps ledger entries as plain keys. SETNX gives first-writer-wins.
type RedisLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLedger returns a ledger backed by rdb. A zero ttl keeps entries forever.
func NewRedisLedger(rdb *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{rdb: rdb, ttl: ttl}
}

func redisLedgerKey(key model.LedgerKey) string {
	return ledgerKeyPrefix + key.String()
}

func (l *RedisLedger) Delivered(ctx context.Context, key model.LedgerKey) (bool, error) {
	n, err := l.rdb.Exists(ctx, redisLedgerKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Record(ctx context.Context, key model.LedgerKey, deliveredAt time.Time) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, redisLedgerKey(key), deliveredAt.UTC().Format(time.RFC3339Nano), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record ledger: %w", err)
	}
	return ok, nil
}
