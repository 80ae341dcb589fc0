package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Sweep(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	_, err := store.UpsertSession(ctx, domain.SessionKey{ConversationID: "old", BotID: "b"}, 0, nil, 10*time.Millisecond)
	require.NoError(t, err)
	_, err = store.UpsertSession(ctx, domain.SessionKey{ConversationID: "fresh", BotID: "b"}, 0, nil, time.Hour)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	sweeper, err := session.NewSweeper(store, "")
	require.NoError(t, err)

	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetActiveSession(ctx, domain.SessionKey{ConversationID: "fresh", BotID: "b"})
	assert.NoError(t, err)
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	_, err := session.NewSweeper(memory.NewStore(), "every now and then")
	assert.Error(t, err)
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper, err := session.NewSweeper(memory.NewStore(), "@every 1h")
	require.NoError(t, err)
	sweeper.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sweeper.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
