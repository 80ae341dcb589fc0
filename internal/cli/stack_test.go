package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/config"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/adapters/redis"
	"github.com/aretw0/botflow/pkg/adapters/sql"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/dsl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func nameFlow() *domain.FlowDefinition {
	b := dsl.New()
	b.Add("start").Start("").Go("ask")
	b.Add("ask").Ask("What is your name?", "name").Go("bye")
	b.Add("bye").End("Hello {{name}}")
	return b.MustBuild()
}

func converse(t *testing.T, s *Stack, texts ...string) *domain.StageResponse {
	t.Helper()
	bot := botflow.New("support", nameFlow(), s.BotOptions...)
	require.NoError(t, bot.Initialize(context.Background()))
	t.Cleanup(func() { _ = bot.Dispose(context.Background()) })

	var resp *domain.StageResponse
	for _, text := range texts {
		var err error
		resp, err = bot.ProcessMessage(context.Background(), domain.MessageContext{ConversationID: "c1", Text: text})
		require.NoError(t, err)
	}
	return resp
}

func TestBuildStack_Memory(t *testing.T) {
	s, err := BuildStack(context.Background(), testConfig(t, ""), logging.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &memory.Store{}, s.Store)
	assert.Nil(t, s.Metrics)
	assert.Nil(t, s.MetricsHandler)

	resp := converse(t, s, "hi", "Ana")
	assert.Equal(t, "Hello Ana", resp.Message)
}

func TestBuildStack_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "botflow.db")
	cfg := testConfig(t, `
store: {backend: sql}
sql: {driver: sqlite, dsn: "`+dsn+`"}
departments:
  - {id: billing, name: Billing}
`)
	s, err := BuildStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &sql.Store{}, s.Store)
	resp := converse(t, s, "hi")
	assert.Equal(t, "What is your name?", resp.Message)

	sess, err := s.Store.GetActiveSession(context.Background(), domain.SessionKey{ConversationID: "c1", BotID: "support"})
	require.NoError(t, err)
	assert.Equal(t, "ask", sess.AwaitingNode())
}

func TestBuildStack_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, `
store: {backend: redis}
redis: {addr: "`+mr.Addr()+`", distributed_lock: true}
`)
	s, err := BuildStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &redis.Store{}, s.Store)
	converse(t, s, "hi")
	assert.True(t, mr.Exists("botflow:session:support:c1"))
}

func TestBuildStack_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t, `
store: {backend: redis}
redis: {addr: "`+addr+`"}
`)
	_, err := BuildStack(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "connect redis")
}

func TestBuildStack_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig(t, "metrics: {enabled: true, namespace: chat}")
	s, err := BuildStack(context.Background(), cfg, logging.NewNop(), WithRegistry(reg))
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.MetricsHandler)

	converse(t, s, "hi")

	rec := httptest.NewRecorder()
	s.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `chat_messages_processed_total{bot_id="support",outcome="replied"} 1`)
}

func TestBuildStack_BadSchedule(t *testing.T) {
	cfg := testConfig(t, "sweep: {schedule: whenever}")
	_, err := BuildStack(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "invalid sweep schedule")
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, logging.ParseLevel("debug"), "text")
	s, err := BuildStack(context.Background(), testConfig(t, ""), logger)
	require.NoError(t, err)
	defer s.Close()

	converse(t, s, "hi")
	assert.Contains(t, buf.String(), "Enter stage")
	assert.Contains(t, buf.String(), "node_id=ask")
}

func TestBuildStack_Encryption(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, `
store: {backend: redis, encryption_key: "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="}
redis: {addr: "`+mr.Addr()+`"}
`)
	s, err := BuildStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer s.Close()

	resp := converse(t, s, "hi", "Ana")
	assert.Equal(t, "Hello Ana", resp.Message)

	converse(t, s, "hi")
	raw, err := mr.Get("botflow:session:support:c1")
	require.NoError(t, err)
	assert.Contains(t, raw, "__encrypted__")
	assert.NotContains(t, raw, "awaiting")
}
