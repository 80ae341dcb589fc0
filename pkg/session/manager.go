package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active locks by session key

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock lifetime.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu and call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// activeLocks reports how many keys currently hold a lock entry.
func (m *Manager) activeLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes fn while holding the lock for the session key.
func (m *Manager) WithLock(ctx context.Context, key domain.SessionKey, fn func(context.Context) error) error {
	id := key.String()
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "session:"+id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Active returns the active session for key.
func (m *Manager) Active(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	var sess *domain.Session
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		sess, err = m.store.GetActiveSession(ctx, key)
		return err
	})
	return sess, err
}

// End deactivates the session for key, waiting for any in-flight message.
func (m *Manager) End(ctx context.Context, key domain.SessionKey) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.EndSession(ctx, key)
	})
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
