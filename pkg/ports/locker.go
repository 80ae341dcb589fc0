package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes access to a conversation across replicas.
// The in-process session.Manager uses it as a second layer when configured.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired or ctx is canceled.
	// The lock is released automatically after ttl if the holder disappears.
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
