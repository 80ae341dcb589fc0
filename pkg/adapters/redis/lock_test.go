package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/adapters/redis"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:resource1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:resource1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:", redis.WithRetryInterval(10*time.Millisecond))
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)
	assert.True(t, mr.Exists("test:lock:shared"))
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	staleUnlock, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	defer unlock(ctx)

	require.NoError(t, staleUnlock(ctx))
	assert.True(t, mr.Exists("test:lock:k"), "expired holder must not release the new lock")
}

func TestRedisLocker_SerializesSessionManagers(t *testing.T) {
	_, client := newClient(t)
	store := memory.NewStore()
	locker := redis.NewLocker(client, "test:", redis.WithRetryInterval(time.Millisecond))
	// Two managers stand in for two replicas sharing one store.
	replicas := []*session.Manager{
		session.NewManager(store, session.WithLocker(locker)),
		session.NewManager(store, session.WithLocker(locker)),
	}
	key := domain.SessionKey{ConversationID: "c", BotID: "b"}
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		overlap bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(m *session.Manager) {
			defer wg.Done()
			err := m.WithLock(ctx, key, func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > 1 {
					overlap = true
				}
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}(replicas[i%2])
	}
	wg.Wait()
	assert.False(t, overlap)
}
