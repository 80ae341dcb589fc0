package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/google/uuid"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[domain.SessionKey]*domain.Session
	mu   sync.RWMutex
	ttl  time.Duration
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDefaultTTL sets the lifetime used when UpsertSession is given none.
func WithDefaultTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		data: make(map[domain.SessionKey]*domain.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// active returns the live session for key. Callers hold mu.
func (s *Store) active(key domain.SessionKey) (*domain.Session, bool) {
	sess, ok := s.data[key]
	if !ok || !sess.Active || sess.Expired(time.Now()) {
		return nil, false
	}
	return sess, true
}

// GetActiveSession returns a copy so callers can't mutate store state by pointer.
func (s *Store) GetActiveSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.active(key)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) UpsertSession(ctx context.Context, key domain.SessionKey, stage domain.StageID, data map[string]any, ttl time.Duration) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.active(key); ok {
		return sess.Clone(), nil
	}
	now := time.Now()
	sess := &domain.Session{
		ID:             uuid.NewString(),
		ConversationID: key.ConversationID,
		BotID:          key.BotID,
		Active:         true,
		CreatedAt:      now,
	}
	s.data[key] = sess
	sess.CurrentStage = stage
	sess.Data = domain.CloneData(data)
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(ports.ResolveTTL(ttl, s.ttl))
	return sess.Clone(), nil
}

func (s *Store) MergeSessionData(ctx context.Context, key domain.SessionKey, partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active(key)
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.Data = ports.ApplyUpdates(sess.Data, partial)
	sess.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateStage(ctx context.Context, key domain.SessionKey, stage domain.StageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active(key)
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.CurrentStage = stage
	sess.UpdatedAt = time.Now()
	return nil
}

// EndSession removes the session; ended sessions are not kept in memory.
func (s *Store) EndSession(ctx context.Context, key domain.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) CleanExpiredSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	n := 0
	for key, sess := range s.data {
		if sess.Expired(now) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

// Len reports how many sessions are held, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
