package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
listen: ":9090"
flows_dir: /etc/botflow/flows
log:
  level: debug
  format: json
store:
  backend: redis
  session_ttl: 45m
redis:
  addr: redis:6379
  db: 2
  prefix: "acme:"
  distributed_lock: true
engine:
  max_iterations: 40
  max_delay: 5s
  ai_timeout: 20s
  strict_cycles: true
openai:
  model: gpt-4o-mini
  temperature: 0.3
  max_tokens: 300
sweep:
  schedule: "*/5 * * * *"
metrics:
  enabled: true
departments:
  - id: billing
    name: Billing
    description: Invoices and refunds
  - id: sales
    name: Sales
`

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_FullConfig(t *testing.T) {
	cfg, err := parse([]byte(fullYAML), noEnv)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, 45*time.Minute, cfg.Store.SessionTTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.Redis.DistributedLock)
	assert.Equal(t, 40, cfg.Engine.MaxIterations)
	assert.Equal(t, 5*time.Second, cfg.Engine.MaxDelay)
	assert.True(t, cfg.Engine.StrictCycles)
	assert.InDelta(t, 0.3, cfg.OpenAI.Temperature, 0.0001)
	assert.Equal(t, "*/5 * * * *", cfg.Sweep.Schedule)
	assert.Equal(t, []domain.Department{
		{ID: "billing", Name: "Billing", Description: "Invoices and refunds"},
		{ID: "sales", Name: "Sales"},
	}, cfg.Departments)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(nil, noEnv)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "flows", cfg.FlowsDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "botflow:", cfg.Redis.Prefix)
	assert.Equal(t, "@every 1m", cfg.Sweep.Schedule)
	assert.Equal(t, "botflow", cfg.Metrics.Namespace)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestParse_EnvOverrides(t *testing.T) {
	cfg, err := parse([]byte(fullYAML), envOf(map[string]string{
		"BOTFLOW_STORE":       "sql",
		"BOTFLOW_SQL_DRIVER":  "mysql",
		"DATABASE_DSN":        "bot:secret@tcp(db:3306)/botflow?parseTime=true",
		"OPENAI_API_KEY":      "sk-env",
		"OPENAI_MODEL":        "gpt-4.1",
		"REDIS_ADDR":          "cache:6380",
		"BOTFLOW_SESSION_TTL": "10m",
		"BOTFLOW_METRICS":     "false",
		// Locking needs redis; disable it along with the store switch.
		"BOTFLOW_DISTRIBUTED_LOCK": "0",
	}))
	require.NoError(t, err)

	assert.Equal(t, StoreSQL, cfg.Store.Backend)
	assert.Equal(t, "mysql", cfg.SQL.Driver)
	assert.Equal(t, "bot:secret@tcp(db:3306)/botflow?parseTime=true", cfg.SQL.DSN)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.OpenAI.Model)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Store.SessionTTL)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestParse_BadEnv(t *testing.T) {
	_, err := parse(nil, envOf(map[string]string{
		"BOTFLOW_MAX_ITERATIONS": "many",
		"BOTFLOW_MAX_DELAY":      "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOTFLOW_MAX_ITERATIONS")
	assert.Contains(t, err.Error(), "BOTFLOW_MAX_DELAY")
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown backend", "store: {backend: mongo}", "store.backend"},
		{"bad sql driver", "store: {backend: sql}\nsql: {driver: oracle, dsn: x}", "sql.driver"},
		{"lock without redis", "redis: {distributed_lock: true}", "distributed_lock"},
		{"bad log format", "log: {format: xml}", "log.format"},
		{"department without id", "departments: [{name: Sales}]", "departments[0].id"},
		{"negative ttl", "store: {session_ttl: -1s}", "session_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.yaml), noEnv)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := parse([]byte("listen: [unclosed"), noEnv)
	assert.ErrorContains(t, err, "config: parse")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":7000\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err = LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
}

func TestParse_EncryptionKeys(t *testing.T) {
	const valid = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // 32 bytes
	cfg, err := parse([]byte("store:\n  encryption_key: "+valid+"\n  retired_keys: ["+valid+"]\n"), noEnv)
	require.NoError(t, err)
	assert.Equal(t, valid, cfg.Store.EncryptionKey)

	_, err = parse(nil, envOf(map[string]string{"BOTFLOW_ENCRYPTION_KEY": "c2hvcnQ="}))
	assert.ErrorContains(t, err, "store.encryption_key")
}
