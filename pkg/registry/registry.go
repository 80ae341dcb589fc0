// Package registry keeps one lazily constructed instance per bot id.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/domain"
	"golang.org/x/sync/singleflight"
)

// Instance is anything the registry can start and stop.
type Instance interface {
	Initialize(ctx context.Context) error
	Dispose(ctx context.Context) error
}

// Constructor builds a fresh, uninitialized instance for id.
type Constructor[T Instance] func(ctx context.Context, id string) (T, error)

// Registry maps ids to constructors and, lazily, to running instances.
// Safe for concurrent use.
type Registry[T Instance] struct {
	mu           sync.RWMutex
	constructors map[string]Constructor[T]
	instances    map[string]T
	group        singleflight.Group
	logger       *slog.Logger
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates an empty registry.
func New[T Instance](opts ...Option) *Registry[T] {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[T]{
		constructors: make(map[string]Constructor[T]),
		instances:    make(map[string]T),
		logger:       o.logger,
	}
}

// Register adds a constructor. An existing constructor is replaced with a
// warning; a running instance keeps serving until it is reloaded.
func (r *Registry[T]) Register(id string, ctor Constructor[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[id]; exists {
		r.logger.Warn("Replacing registered constructor", "bot_id", id)
	}
	r.constructors[id] = ctor
}

// CreateOrGet returns the running instance for id, constructing and
// initializing it on first use. Concurrent first calls share one construction.
// Failures are returned to every waiting caller and never cached.
func (r *Registry[T]) CreateOrGet(ctx context.Context, id string) (T, error) {
	if inst, ok := r.instance(id); ok {
		return inst, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if inst, ok := r.instance(id); ok {
			return inst, nil
		}

		r.mu.RLock()
		ctor, ok := r.constructors[id]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrBotNotFound, id)
		}

		inst, err := ctor(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("construct %s: %w", id, err)
		}
		if err := inst.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize %s: %w", id, err)
		}

		r.mu.Lock()
		r.instances[id] = inst
		r.mu.Unlock()
		r.logger.Info("Instance started", "bot_id", id)
		return inst, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (r *Registry[T]) instance(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Remove disposes and evicts the running instance. The constructor stays
// registered, so the next CreateOrGet builds a fresh instance.
func (r *Registry[T]) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	inst, ok := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := inst.Dispose(ctx); err != nil {
		r.logger.Warn("Dispose failed", "bot_id", id, "err", err)
		return fmt.Errorf("dispose %s: %w", id, err)
	}
	r.logger.Info("Instance stopped", "bot_id", id)
	return nil
}

// Unregister removes the constructor and disposes any running instance.
func (r *Registry[T]) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	_, known := r.constructors[id]
	delete(r.constructors, id)
	r.mu.Unlock()

	if err := r.Remove(ctx, id); err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("%w: %s", domain.ErrBotNotFound, id)
	}
	return nil
}

// Reload replaces the running instance with a freshly constructed one.
func (r *Registry[T]) Reload(ctx context.Context, id string) (T, error) {
	if err := r.Remove(ctx, id); err != nil {
		r.logger.Warn("Reload continues after dispose failure", "bot_id", id, "err", err)
	}
	return r.CreateOrGet(ctx, id)
}

// Registered lists the ids with a constructor, sorted.
func (r *Registry[T]) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.constructors)
}

// Active lists the ids with a running instance, sorted.
func (r *Registry[T]) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.instances)
}

// Clear disposes every running instance. Used at shutdown.
func (r *Registry[T]) Clear(ctx context.Context) error {
	var errs []error
	for _, id := range r.Active() {
		if err := r.Remove(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
