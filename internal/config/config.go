// Package config loads botflow settings from YAML plus environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/persistence/middleware"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQL    = "sql"
)

// Config is the top-level botflow configuration.
type Config struct {
	Listen   string        `yaml:"listen"`
	FlowsDir string        `yaml:"flows_dir"`
	Log      LogConfig     `yaml:"log"`
	Store    StoreConfig   `yaml:"store"`
	Redis    RedisConfig   `yaml:"redis"`
	SQL      SQLConfig     `yaml:"sql"`
	Engine   EngineConfig  `yaml:"engine"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
	Sweep    SweepConfig   `yaml:"sweep"`
	Metrics  MetricsConfig `yaml:"metrics"`

	CORSOrigins []string            `yaml:"cors_origins"`
	Departments []domain.Department `yaml:"departments"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type StoreConfig struct {
	Backend    string        `yaml:"backend"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	// EncryptionKey (base64, 32 bytes) seals session variables at rest.
	EncryptionKey string   `yaml:"encryption_key"`
	RetiredKeys   []string `yaml:"retired_keys"`
}

type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	Prefix          string `yaml:"prefix"`
	DistributedLock bool   `yaml:"distributed_lock"`
}

type SQLConfig struct {
	Driver string `yaml:"driver"` // mysql or sqlite
	DSN    string `yaml:"dsn"`
}

type EngineConfig struct {
	MaxIterations  int           `yaml:"max_iterations"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	MaxHTTPTimeout time.Duration `yaml:"max_http_timeout"`
	AITimeout      time.Duration `yaml:"ai_timeout"`
	MaxInputSize   int           `yaml:"max_input_size"`
	StrictCycles   bool          `yaml:"strict_cycles"`
}

type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type SweepConfig struct {
	Schedule string `yaml:"schedule"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load reads the YAML file at path (optional when empty), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return parse(data, os.LookupEnv)
}

// LoadOptional is Load, but a missing file is treated as empty.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

// Parse unmarshals YAML bytes into a validated Config, with environment overrides.
func Parse(data []byte) (*Config, error) {
	return parse(data, os.LookupEnv)
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables on the file values.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}

	str("BOTFLOW_LISTEN", &c.Listen)
	str("BOTFLOW_FLOWS_DIR", &c.FlowsDir)
	str("BOTFLOW_LOG_LEVEL", &c.Log.Level)
	str("BOTFLOW_LOG_FORMAT", &c.Log.Format)
	str("BOTFLOW_STORE", &c.Store.Backend)
	duration("BOTFLOW_SESSION_TTL", &c.Store.SessionTTL)
	str("BOTFLOW_ENCRYPTION_KEY", &c.Store.EncryptionKey)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	boolean("BOTFLOW_DISTRIBUTED_LOCK", &c.Redis.DistributedLock)
	str("BOTFLOW_SQL_DRIVER", &c.SQL.Driver)
	str("DATABASE_DSN", &c.SQL.DSN)
	integer("BOTFLOW_MAX_ITERATIONS", &c.Engine.MaxIterations)
	duration("BOTFLOW_MAX_DELAY", &c.Engine.MaxDelay)
	duration("BOTFLOW_MAX_HTTP_TIMEOUT", &c.Engine.MaxHTTPTimeout)
	duration("BOTFLOW_AI_TIMEOUT", &c.Engine.AITimeout)
	integer("BOTFLOW_MAX_INPUT_SIZE", &c.Engine.MaxInputSize)
	boolean("BOTFLOW_STRICT_CYCLES", &c.Engine.StrictCycles)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("BOTFLOW_SWEEP_SCHEDULE", &c.Sweep.Schedule)
	boolean("BOTFLOW_METRICS", &c.Metrics.Enabled)

	if len(errs) > 0 {
		return fmt.Errorf("config: environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.FlowsDir == "" {
		c.FlowsDir = "flows"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreMemory
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "botflow:"
	}
	if c.SQL.Driver == "" {
		c.SQL.Driver = "sqlite"
	}
	if c.SQL.DSN == "" && c.SQL.Driver == "sqlite" {
		c.SQL.DSN = "botflow.db"
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "@every 1m"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "botflow"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StoreSQL:
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q must be memory, redis or sql", c.Store.Backend))
	}
	if c.Store.Backend == StoreSQL {
		if c.SQL.Driver != "mysql" && c.SQL.Driver != "sqlite" {
			errs = append(errs, fmt.Sprintf("sql.driver %q must be mysql or sqlite", c.SQL.Driver))
		}
		if c.SQL.DSN == "" {
			errs = append(errs, "sql.dsn is required")
		}
	}
	if c.Redis.DistributedLock && c.Store.Backend != StoreRedis {
		errs = append(errs, "redis.distributed_lock requires store.backend redis")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Engine.MaxIterations < 0 {
		errs = append(errs, "engine.max_iterations must not be negative")
	}
	if c.Store.SessionTTL < 0 {
		errs = append(errs, "store.session_ttl must not be negative")
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.DecodeKey(c.Store.EncryptionKey); err != nil {
			errs = append(errs, fmt.Sprintf("store.encryption_key: %v", err))
		}
	}
	for i, k := range c.Store.RetiredKeys {
		if _, err := middleware.DecodeKey(k); err != nil {
			errs = append(errs, fmt.Sprintf("store.retired_keys[%d]: %v", i, err))
		}
	}
	for i, d := range c.Departments {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("departments[%d].id is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
