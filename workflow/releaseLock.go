package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/montron/pm_backend/config"
)

// ErrLockHeld means another release of the same workday is in flight.
var ErrLockHeld = errors.New("release lock held")

// ReleaseLocker serializes release attempts of one workday across instances.
// The returned func releases the lock.
type ReleaseLocker interface {
	Acquire(ctx context.Context, companyId, workdayId string) (func(), error)
}

type RedisReleaseLocker struct {
	Client *redislock.Client
	TTL    time.Duration
}

// NewRedisReleaseLocker returns nil when Redis is not connected, which
// disables release locking.
func NewRedisReleaseLocker() *RedisReleaseLocker {
	client := config.GetRedisLock()
	if client == nil {
		return nil
	}
	return &RedisReleaseLocker{Client: client, TTL: config.ReleaseLockTTL()}
}

func releaseLockKey(companyId, workdayId string) string {
	return fmt.Sprintf("release:%s:%s", companyId, workdayId)
}

func (l *RedisReleaseLocker) Acquire(ctx context.Context, companyId, workdayId string) (func(), error) {
	key := releaseLockKey(companyId, workdayId)
	lock, err := l.Client.Obtain(ctx, key, l.TTL, nil)
	if err == redislock.ErrNotObtained {
		return nil, fmt.Errorf("%s: %w", key, ErrLockHeld)
	} else if err != nil {
		return nil, err
	}
	return func() {
		// context.Background so a cancelled request still frees the key
		if err := lock.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
			config.LogError(config.GetLogger(), "workflow", "RedisReleaseLocker", "release lock", key, err)
		}
	}, nil
}
