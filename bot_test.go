package botflow_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greeting() *domain.FlowDefinition {
	b := dsl.New()
	b.Add("start").Start("").Go("ask")
	b.Add("ask").Ask("What is your name?", "name").Go("hello")
	b.Add("hello").Send("Hello {{name}}").Go("end")
	b.Add("end").End("")
	return b.MustBuild()
}

func msg(conv, text string) domain.MessageContext {
	return domain.MessageContext{ConversationID: conv, Text: text}
}

func TestBot_ProcessMessage(t *testing.T) {
	ctx := context.Background()
	bot := botflow.New("greeter", greeting())
	require.NoError(t, bot.Initialize(ctx))

	resp, err := bot.ProcessMessage(ctx, msg("c1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "What is your name?", resp.Message)

	resp, err = bot.ProcessMessage(ctx, msg("c1", "Ana"))
	require.NoError(t, err)
	assert.Equal(t, "Hello Ana", resp.Message)
	assert.True(t, resp.EndSession)
}

func TestBot_InitializeReportsCompileErrors(t *testing.T) {
	ctx := context.Background()

	bot := botflow.New("broken", &domain.FlowDefinition{
		Nodes: []domain.Node{{ID: "hello", Type: domain.NodeSendMessage}},
	})
	assert.ErrorIs(t, bot.Initialize(ctx), domain.ErrMissingStartNode)

	_, err := bot.ProcessMessage(ctx, msg("c1", "hi"))
	assert.Error(t, err, "an uninitialized bot takes no messages")
}

func TestBot_StrictCycles(t *testing.T) {
	b := dsl.New()
	b.Add("start").Start("").Go("a")
	b.Add("a").Assign("x", "1").Go("b")
	b.Add("b").Assign("y", "1").Go("a")
	def := b.MustBuild()
	ctx := context.Background()

	assert.NoError(t, botflow.New("lenient", def).Initialize(ctx))
	assert.ErrorIs(t, botflow.New("strict", def, botflow.WithStrictCycles()).Initialize(ctx), compiler.ErrAutoChainCycle)
}

func TestBot_FailuresBecomeApologies(t *testing.T) {
	b := dsl.New()
	b.Add("start").Start("").Go("a")
	b.Add("a").Assign("x", "1").Go("start")
	ctx := context.Background()

	bot := botflow.New("loop", b.MustBuild(), botflow.WithApology("Oops"))
	require.NoError(t, bot.Initialize(ctx))

	resp, err := bot.ProcessMessage(ctx, msg("c1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "Oops", resp.Message)
	assert.False(t, resp.EndSession)
}

type failingStore struct{ *memory.Store }

func (failingStore) GetActiveSession(context.Context, domain.SessionKey) (*domain.Session, error) {
	return nil, errors.New("connection refused")
}

func TestBot_StoreFailureBecomesApology(t *testing.T) {
	ctx := context.Background()
	bot := botflow.New("greeter", greeting(), botflow.WithStore(failingStore{memory.NewStore()}))
	require.NoError(t, bot.Initialize(ctx))

	resp, err := bot.ProcessMessage(ctx, msg("c1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, botflow.DefaultApology, resp.Message)
}

type panickingDoer struct{}

func (panickingDoer) Do(*http.Request) (*http.Response, error) {
	panic("transport blew up")
}

func TestBot_PanicBecomesApology(t *testing.T) {
	b := dsl.New()
	b.Add("start").Start("").Go("call")
	b.Add("call").HTTP("GET", "https://crm.example.com/orders").Go("done")
	b.Add("done").End("Done")
	ctx := context.Background()

	bot := botflow.New("crm", b.MustBuild(), botflow.WithHTTPClient(panickingDoer{}))
	require.NoError(t, bot.Initialize(ctx))

	resp, err := bot.ProcessMessage(ctx, msg("c1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, botflow.DefaultApology, resp.Message)

	// The conversation lock was released.
	resp, err = bot.ProcessMessage(ctx, msg("c1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, botflow.DefaultApology, resp.Message)
}

func TestBot_OversizedInputIsRejected(t *testing.T) {
	ctx := context.Background()
	bot := botflow.New("greeter", greeting(), botflow.WithMaxInputSize(8))
	require.NoError(t, bot.Initialize(ctx))

	resp, err := bot.ProcessMessage(ctx, msg("c1", strings.Repeat("a", 9)))
	require.NoError(t, err)
	assert.Equal(t, botflow.DefaultApology, resp.Message)
}

func TestBot_Dispose(t *testing.T) {
	ctx := context.Background()
	bot := botflow.New("greeter", greeting())
	require.NoError(t, bot.Initialize(ctx))
	require.NoError(t, bot.Dispose(ctx))

	_, err := bot.ProcessMessage(ctx, msg("c1", "hi"))
	assert.ErrorIs(t, err, domain.ErrDisposed)
	assert.ErrorIs(t, bot.Initialize(ctx), domain.ErrDisposed)
	assert.Nil(t, bot.StageIDs())
}

func TestBot_StageRegistration(t *testing.T) {
	ctx := context.Background()
	bot := botflow.New("greeter", greeting())
	require.NoError(t, bot.Initialize(ctx))

	assert.Equal(t, []domain.StageID{0, 1, 2, 3}, bot.StageIDs())
	node, ok := bot.GetStage(2)
	require.True(t, ok)
	assert.Equal(t, "hello", node.ID)

	id, err := bot.AddStage(domain.Node{ID: "extra", Type: domain.NodeEnd})
	require.NoError(t, err)
	assert.True(t, bot.HasStage(id))
	assert.True(t, bot.RemoveStage(id))
	assert.False(t, bot.HasStage(id))
	assert.False(t, bot.RemoveStage(0))
}

// countingStore tracks how many messages of a conversation are in flight.
type countingStore struct {
	*memory.Store
	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *countingStore) GetActiveSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	n := s.inflight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return s.Store.GetActiveSession(ctx, key)
}

func (s *countingStore) EndSession(ctx context.Context, key domain.SessionKey) error {
	s.inflight.Add(-1)
	return s.Store.EndSession(ctx, key)
}

func TestBot_SerializesOneConversation(t *testing.T) {
	b := dsl.New()
	b.Add("start").Start("").Go("wait")
	b.Add("wait").Delay(0.005).Go("end")
	b.Add("end").End("bye")

	store := &countingStore{Store: memory.NewStore()}
	bot := botflow.New("slow", b.MustBuild(), botflow.WithStore(store))
	ctx := context.Background()
	require.NoError(t, bot.Initialize(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := bot.ProcessMessage(ctx, msg("same", "hi"))
			assert.NoError(t, err)
			assert.Equal(t, "bye", resp.Message)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), store.peak.Load())
}
