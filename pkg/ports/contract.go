package ports

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests verifying that a SessionStore
// implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000")
	key := func(name string) domain.SessionKey {
		return domain.SessionKey{ConversationID: prefix + "-" + name, BotID: "contract-bot"}
	}

	t.Run("Upsert and Get", func(t *testing.T) {
		k := key("upsert")
		created, err := store.UpsertSession(ctx, k, 3, map[string]any{"foo": "bar"}, time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.True(t, created.Active)
		assert.Equal(t, domain.StageID(3), created.CurrentStage)
		assert.Equal(t, k, created.Key())

		loaded, err := store.GetActiveSession(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, created.ID, loaded.ID)
		assert.Equal(t, domain.StageID(3), loaded.CurrentStage)
		assert.Equal(t, "bar", loaded.Data["foo"])
		assert.True(t, loaded.ExpiresAt.After(time.Now()))
	})

	t.Run("Get Missing", func(t *testing.T) {
		_, err := store.GetActiveSession(ctx, key("missing"))
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Merge", func(t *testing.T) {
		k := key("merge")
		_, err := store.UpsertSession(ctx, k, 0, map[string]any{"keep": "1", "drop": "x"}, 0)
		require.NoError(t, err)

		err = store.MergeSessionData(ctx, k, map[string]any{"added": "2", "drop": nil})
		require.NoError(t, err)

		loaded, err := store.GetActiveSession(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "1", loaded.Data["keep"])
		assert.Equal(t, "2", loaded.Data["added"])
		assert.NotContains(t, loaded.Data, "drop")

		err = store.MergeSessionData(ctx, key("merge-missing"), map[string]any{"a": "b"})
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("UpdateStage", func(t *testing.T) {
		k := key("stage")
		_, err := store.UpsertSession(ctx, k, 0, nil, 0)
		require.NoError(t, err)
		require.NoError(t, store.UpdateStage(ctx, k, 7))

		loaded, err := store.GetActiveSession(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, domain.StageID(7), loaded.CurrentStage)

		err = store.UpdateStage(ctx, key("stage-missing"), 1)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Upsert Keeps Active Session", func(t *testing.T) {
		k := key("keep")
		first, err := store.UpsertSession(ctx, k, 4, map[string]any{"old": "yes"}, time.Minute)
		require.NoError(t, err)
		second, err := store.UpsertSession(ctx, k, 0, map[string]any{"new": "yes"}, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, domain.StageID(4), second.CurrentStage)
		assert.Equal(t, "yes", second.Data["old"])

		loaded, err := store.GetActiveSession(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, domain.StageID(4), loaded.CurrentStage)
		assert.Equal(t, "yes", loaded.Data["old"])
		assert.NotContains(t, loaded.Data, "new")
		assert.True(t, first.ExpiresAt.Equal(loaded.ExpiresAt), "expiry stays fixed at creation")
	})

	t.Run("End", func(t *testing.T) {
		k := key("end")
		first, err := store.UpsertSession(ctx, k, 0, nil, 0)
		require.NoError(t, err)
		require.NoError(t, store.EndSession(ctx, k))

		_, err = store.GetActiveSession(ctx, k)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.NoError(t, store.EndSession(ctx, k), "ending twice is not an error")

		second, err := store.UpsertSession(ctx, k, 0, nil, 0)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID, "a new session starts after the previous one ended")
	})

	t.Run("Keys Are Isolated", func(t *testing.T) {
		a := key("iso")
		b := domain.SessionKey{ConversationID: a.ConversationID, BotID: "other-bot"}
		_, err := store.UpsertSession(ctx, a, 1, map[string]any{"who": "a"}, 0)
		require.NoError(t, err)
		_, err = store.UpsertSession(ctx, b, 2, map[string]any{"who": "b"}, 0)
		require.NoError(t, err)

		la, err := store.GetActiveSession(ctx, a)
		require.NoError(t, err)
		lb, err := store.GetActiveSession(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, "a", la.Data["who"])
		assert.Equal(t, "b", lb.Data["who"])
	})

	t.Run("Expiry", func(t *testing.T) {
		k := key("expiry")
		_, err := store.UpsertSession(ctx, k, 0, nil, 30*time.Millisecond)
		require.NoError(t, err)
		time.Sleep(80 * time.Millisecond)

		_, err = store.GetActiveSession(ctx, k)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		n, err := store.CleanExpiredSessions(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		n, err = store.CleanExpiredSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

// RunFlowSourceContract verifies a FlowSource against the bots it was seeded with.
func RunFlowSourceContract(t *testing.T, source FlowSource, seeded map[string]*domain.FlowDefinition) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadFlow", func(t *testing.T) {
		for botID, want := range seeded {
			got, err := source.LoadFlow(ctx, botID)
			require.NoError(t, err, botID)
			assert.Len(t, got.Nodes, len(want.Nodes), botID)
			assert.Len(t, got.Edges, len(want.Edges), botID)
		}
	})

	t.Run("LoadFlow Missing", func(t *testing.T) {
		_, err := source.LoadFlow(ctx, "no-such-bot")
		assert.True(t, errors.Is(err, domain.ErrBotNotFound), fmt.Sprintf("got %v", err))
	})

	t.Run("ListFlows", func(t *testing.T) {
		ids, err := source.ListFlows(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, len(seeded))
		for id := range seeded {
			assert.Contains(t, ids, id)
		}
		assert.IsNonDecreasing(t, ids)
	})
}
