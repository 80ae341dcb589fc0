// Package cli wires configuration into the runnable pieces used by the
// botflow commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/config"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/adapters/openai"
	"github.com/aretw0/botflow/pkg/adapters/redis"
	"github.com/aretw0/botflow/pkg/adapters/sql"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/observability"
	"github.com/aretw0/botflow/pkg/persistence/middleware"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/aretw0/botflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Stack is everything a host needs to run bots built from one configuration.
type Stack struct {
	Store    ports.SessionStore
	Sessions *session.Manager
	Sweeper  *session.Sweeper

	// Metrics is nil unless metrics are enabled.
	Metrics        *observability.Metrics
	MetricsHandler http.Handler

	BotOptions []botflow.Option

	closers []func() error
}

// StackOption tweaks BuildStack.
type StackOption func(*stackOptions)

type stackOptions struct {
	registry *prometheus.Registry
	hooks    []domain.LifecycleHooks
	extra    []botflow.Option
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) StackOption {
	return func(o *stackOptions) {
		o.registry = reg
	}
}

// WithHooks adds lifecycle hooks next to the metrics hooks.
func WithHooks(hooks ...domain.LifecycleHooks) StackOption {
	return func(o *stackOptions) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithBotOptions appends bot options after the configured ones.
func WithBotOptions(opts ...botflow.Option) StackOption {
	return func(o *stackOptions) {
		o.extra = append(o.extra, opts...)
	}
}

// BuildStack opens the configured session backend and assembles the bot options.
func BuildStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...StackOption) (*Stack, error) {
	var o stackOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Stack{}
	var (
		locker      ports.DistributedLocker
		departments ports.DepartmentDirectory = memory.Directory(cfg.Departments)
	)

	switch cfg.Store.Backend {
	case config.StoreRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Store.SessionTTL))
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		s.Store = store
		s.closers = append(s.closers, store.Close)
		if cfg.Redis.DistributedLock {
			locker = redis.NewLocker(store.Client(), cfg.Redis.Prefix)
		}
		logger.Info("Session store ready", "backend", "redis", "addr", cfg.Redis.Addr)

	case config.StoreSQL:
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, sqlDB.Close)
		}
		dir := sql.NewDirectory(db)
		if len(cfg.Departments) > 0 {
			if err := dir.Seed(ctx, cfg.Departments); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("seed departments: %w", err)
			}
		}
		departments = dir
		s.Store = sql.NewStore(db, sql.WithTTL(cfg.Store.SessionTTL))
		logger.Info("Session store ready", "backend", "sql", "driver", cfg.SQL.Driver)

	default:
		s.Store = memory.NewStore(memory.WithDefaultTTL(cfg.Store.SessionTTL))
		logger.Info("Session store ready", "backend", "memory")
	}

	if cfg.Store.EncryptionKey != "" {
		mw, err := encryption(cfg.Store)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Store = middleware.Chain(s.Store, mw)
		logger.Info("Session data encrypted at rest", "retired_keys", len(cfg.Store.RetiredKeys))
	}

	managerOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(locker))
	}
	s.Sessions = session.NewManager(s.Store, managerOpts...)

	sweeper, err := session.NewSweeper(s.Store, cfg.Sweep.Schedule, session.WithSweepLogger(logger))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Sweeper = sweeper

	hooks := append([]domain.LifecycleHooks{loggingHooks(logger)}, o.hooks...)
	if cfg.Metrics.Enabled {
		reg := o.registry
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		s.Metrics = observability.NewMetrics(cfg.Metrics.Namespace, reg)
		s.MetricsHandler = observability.Handler(reg)
		hooks = append(hooks, s.Metrics.Hooks())
	}

	s.BotOptions = []botflow.Option{
		botflow.WithSessionManager(s.Sessions),
		botflow.WithLogger(logger),
		botflow.WithLifecycleHooks(domain.ChainHooks(hooks...)),
		botflow.WithDepartments(departments),
		botflow.WithAIDefaults(cfg.OpenAI.Model, cfg.OpenAI.Temperature, cfg.OpenAI.MaxTokens),
	}
	if cfg.Engine.MaxIterations > 0 {
		s.BotOptions = append(s.BotOptions, botflow.WithMaxIterations(cfg.Engine.MaxIterations))
	}
	if cfg.Engine.MaxDelay > 0 {
		s.BotOptions = append(s.BotOptions, botflow.WithMaxDelay(cfg.Engine.MaxDelay))
	}
	if cfg.Engine.MaxHTTPTimeout > 0 {
		s.BotOptions = append(s.BotOptions, botflow.WithMaxHTTPTimeout(cfg.Engine.MaxHTTPTimeout))
	}
	if cfg.Engine.AITimeout > 0 {
		s.BotOptions = append(s.BotOptions, botflow.WithAITimeout(cfg.Engine.AITimeout))
	}
	if cfg.Engine.MaxInputSize > 0 {
		s.BotOptions = append(s.BotOptions, botflow.WithMaxInputSize(cfg.Engine.MaxInputSize))
	}
	if cfg.Engine.StrictCycles {
		s.BotOptions = append(s.BotOptions, botflow.WithStrictCycles())
	}
	if cfg.OpenAI.APIKey != "" {
		providerOpts := []openai.Option{openai.WithLogger(logger)}
		if cfg.OpenAI.Model != "" {
			providerOpts = append(providerOpts, openai.WithModel(cfg.OpenAI.Model))
		}
		if cfg.OpenAI.BaseURL != "" {
			providerOpts = append(providerOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		s.BotOptions = append(s.BotOptions, botflow.WithCompletionProvider(openai.New(cfg.OpenAI.APIKey, providerOpts...)))
	} else {
		logger.Debug("OpenAI key not set; ai_response nodes will use their fallback message")
	}
	s.BotOptions = append(s.BotOptions, o.extra...)
	return s, nil
}

func encryption(cfg config.StoreConfig) (middleware.Middleware, error) {
	active, err := middleware.DecodeKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	ec := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range cfg.RetiredKeys {
		key, err := middleware.DecodeKey(k)
		if err != nil {
			return nil, err
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(ec)
}

// Close releases backend connections.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
