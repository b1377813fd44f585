package worker

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/distlock"
)

// ErrLockHeld is returned by Locker.Acquire when another holder owns the key.
var ErrLockHeld = errors.New("lock already held")

// DistLocker vends distributed locks backed by Redis, or by Postgres
// advisory locks when no Redis client is wired.
type DistLocker struct {
	redis *redis.Client
	db    *sql.DB
}

// NewDistLocker creates a lock factory. Either backend may be nil, not both.
func NewDistLocker(redisClient *redis.Client, db *sql.DB) *DistLocker {
	return &DistLocker{redis: redisClient, db: db}
}

func (d *DistLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	l := distlock.NewLock(d.redis, d.db, key, ttl)
	ok, err := l.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return l, nil
}
