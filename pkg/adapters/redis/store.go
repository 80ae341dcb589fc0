package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by Store and Locker.
const DefaultPrefix = "botflow:"

// maxTxRetries bounds optimistic WATCH retries on contended sessions.
const maxTxRetries = 8

// ErrTxContention is returned when a session update keeps losing WATCH races.
var ErrTxContention = errors.New("redis: too much contention on session")

// Store implements ports.SessionStore using Redis.
//
// Each session is a JSON document under <prefix>session:<bot>:<conversation>
// with a PX expiry. A sorted set <prefix>expiry scores keys by expiry time
// so CleanExpiredSessions does not need to SCAN.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the lifetime used when UpsertSession is given none.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(k domain.SessionKey) string {
	return s.prefix + "session:" + k.String()
}

func (s *Store) indexKey() string {
	return s.prefix + "expiry"
}

// read loads and decodes the session under key, reporting whether it is
// live. getter is either the client or a WATCH transaction.
func (s *Store) read(ctx context.Context, getter backend.Cmdable, key string) (*domain.Session, bool, error) {
	raw, err := getter.Get(ctx, key).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	live := sess.Active && !sess.Expired(time.Now())
	return &sess, live, nil
}

// write stores sess with a PX matching its remaining lifetime and indexes it.
func (s *Store) write(ctx context.Context, pipe backend.Pipeliner, key string, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	remaining := time.Until(sess.ExpiresAt)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	pipe.Set(ctx, key, data, remaining)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(sess.ExpiresAt.UnixMilli()),
		Member: key,
	})
	return nil
}

// update runs fn against the live session under an optimistic WATCH.
// fn returns false to abort without writing.
func (s *Store) update(ctx context.Context, k domain.SessionKey, fn func(sess *domain.Session, live bool) (bool, error)) error {
	key := s.key(k)
	txf := func(tx *backend.Tx) error {
		sess, live, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if sess == nil {
			sess = &domain.Session{}
		}
		write, err := fn(sess, live)
		if err != nil || !write {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			return s.write(ctx, pipe, key, sess)
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTxContention
}

func (s *Store) GetActiveSession(ctx context.Context, k domain.SessionKey) (*domain.Session, error) {
	sess, live, err := s.read(ctx, s.client, s.key(k))
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) UpsertSession(ctx context.Context, k domain.SessionKey, stage domain.StageID, data map[string]any, ttl time.Duration) (*domain.Session, error) {
	var out *domain.Session
	err := s.update(ctx, k, func(sess *domain.Session, live bool) (bool, error) {
		if live {
			out = sess.Clone()
			return false, nil
		}
		now := time.Now()
		*sess = domain.Session{
			ID:             uuid.NewString(),
			ConversationID: k.ConversationID,
			BotID:          k.BotID,
			Active:         true,
			CreatedAt:      now,
		}
		sess.CurrentStage = stage
		sess.Data = domain.CloneData(data)
		sess.UpdatedAt = now
		sess.ExpiresAt = now.Add(ports.ResolveTTL(ttl, s.ttl))
		out = sess.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutate applies fn to a live session, failing with ErrSessionNotFound otherwise.
func (s *Store) mutate(ctx context.Context, k domain.SessionKey, fn func(sess *domain.Session)) error {
	missing := false
	err := s.update(ctx, k, func(sess *domain.Session, live bool) (bool, error) {
		if !live {
			missing = true
			return false, nil
		}
		fn(sess)
		sess.UpdatedAt = time.Now()
		return true, nil
	})
	if err != nil {
		return err
	}
	if missing {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) MergeSessionData(ctx context.Context, k domain.SessionKey, partial map[string]any) error {
	return s.mutate(ctx, k, func(sess *domain.Session) {
		sess.Data = ports.ApplyUpdates(sess.Data, partial)
	})
}

func (s *Store) UpdateStage(ctx context.Context, k domain.SessionKey, stage domain.StageID) error {
	return s.mutate(ctx, k, func(sess *domain.Session) {
		sess.CurrentStage = stage
	})
}

// EndSession deletes the session document and its index entry.
func (s *Store) EndSession(ctx context.Context, k domain.SessionKey) error {
	key := s.key(k)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// CleanExpiredSessions removes every indexed session whose expiry has passed.
// Redis may already have evicted the document; the index entry still counts.
func (s *Store) CleanExpiredSessions(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	keys, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	removed := pipe.ZRem(ctx, s.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	return int(removed.Val()), nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
