package runtime_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/dsl"
	"github.com/stretchr/testify/require"
)

// recordingStore remembers every merge so tests can inspect sessions after they end.
type recordingStore struct {
	*memory.Store
	mu     sync.Mutex
	merged map[string]any
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.NewStore(), merged: make(map[string]any)}
}

func (s *recordingStore) MergeSessionData(ctx context.Context, key domain.SessionKey, partial map[string]any) error {
	s.mu.Lock()
	for k, v := range partial {
		s.merged[k] = v
	}
	s.mu.Unlock()
	return s.Store.MergeSessionData(ctx, key, partial)
}

func (s *recordingStore) lastMerged(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.merged[key]
	return v, ok
}

type harness struct {
	t      *testing.T
	engine *runtime.Engine
	store  *recordingStore
	key    domain.SessionKey
}

func newHarness(t *testing.T, b *dsl.Builder, opts ...runtime.EngineOption) *harness {
	t.Helper()
	program, err := compiler.Compile(b.MustBuild())
	require.NoError(t, err)
	store := newRecordingStore()
	return &harness{
		t:      t,
		engine: runtime.NewEngine("bot-1", program, store, opts...),
		store:  store,
		key:    domain.SessionKey{ConversationID: "conv-1", BotID: "bot-1"},
	}
}

func (h *harness) send(text string) *domain.StageResponse {
	h.t.Helper()
	resp, err := h.engine.Execute(context.Background(), h.message(text))
	require.NoError(h.t, err)
	return resp
}

func (h *harness) message(text string) domain.MessageContext {
	return domain.MessageContext{
		ConversationID: h.key.ConversationID,
		UserID:         "5511999990000",
		UserName:       "Ana Souza",
		Provider:       "whatsapp",
		Text:           text,
	}
}

func (h *harness) session() *domain.Session {
	h.t.Helper()
	sess, err := h.store.GetActiveSession(context.Background(), h.key)
	require.NoError(h.t, err)
	return sess
}

func (h *harness) stage(nodeID string) domain.StageID {
	h.t.Helper()
	id, ok := h.engine.Program().StageFor(nodeID)
	require.True(h.t, ok, nodeID)
	return id
}
