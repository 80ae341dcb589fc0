package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/botflow/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// DefaultRetryInterval is how often a blocked Lock polls Redis.
const DefaultRetryInterval = 50 * time.Millisecond

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
	retry  time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithRetryInterval sets the polling interval while a lock is held elsewhere.
func WithRetryInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

// NewLocker creates a new Redis locker. Keys are written as <prefix>lock:<key>.
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{
		client: client,
		prefix: prefix,
		retry:  DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires a distributed lock for the given key using Redis SET NX PX.
// Each holder writes a unique token so a lock that expired and was taken by
// someone else is never released by the late holder.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	unlock := func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
