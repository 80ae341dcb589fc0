package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/botflow/pkg/adapters/redis"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSessionStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_ExpiryEvictsDocument(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()
	key := domain.SessionKey{ConversationID: "5511999990000", BotID: "support"}

	_, err := store.UpsertSession(ctx, key, 0, map[string]any{"name": "Ana"}, 0)
	require.NoError(t, err)
	assert.True(t, mr.Exists("botflow:session:support:5511999990000"))

	mr.FastForward(2 * time.Second)

	assert.False(t, mr.Exists("botflow:session:support:5511999990000"))
	_, err = store.GetActiveSession(ctx, key)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()
	key := domain.SessionKey{ConversationID: "c1", BotID: "b1"}

	_, err := store.UpsertSession(ctx, key, 2, nil, time.Minute)
	require.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:session:b1:c1"), "session key should carry the prefix")
	assert.True(t, mr.Exists("custom:app:expiry"), "expiry index should carry the prefix")

	require.NoError(t, store.EndSession(ctx, key))
	assert.False(t, mr.Exists("custom:app:session:b1:c1"))
}

func TestRedisStore_PreservesLifetimeOnMerge(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()
	key := domain.SessionKey{ConversationID: "c", BotID: "b"}

	created, err := store.UpsertSession(ctx, key, 0, nil, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.MergeSessionData(ctx, key, map[string]any{"x": "1"}))

	loaded, err := store.GetActiveSession(ctx, key)
	require.NoError(t, err)
	assert.True(t, created.ExpiresAt.Equal(loaded.ExpiresAt))
	assert.Greater(t, mr.TTL("botflow:session:b:c"), 50*time.Minute)
}
