package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store implements ports.SessionStore on top of GORM.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the lifetime used when UpsertSession is given none.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewStore wraps an opened, migrated connection (see Open).
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now is UTC so sqlite's textual time comparison stays ordered.
func now() time.Time {
	return time.Now().UTC()
}

func scoped(tx *gorm.DB, k domain.SessionKey) *gorm.DB {
	return tx.Where("bot_id = ? AND conversation_id = ? AND active = ?", k.BotID, k.ConversationID, true)
}

// live loads the active row for k. Rows whose lifetime elapsed are
// reported as missing.
func live(tx *gorm.DB, k domain.SessionKey) (*sessionRow, error) {
	var row sessionRow
	err := scoped(tx, k).Order("created_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sql: load session: %w", err)
	}
	if !row.ExpiresAt.After(now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &row, nil
}

func (s *Store) GetActiveSession(ctx context.Context, k domain.SessionKey) (*domain.Session, error) {
	row, err := live(s.db.WithContext(ctx), k)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) UpsertSession(ctx context.Context, k domain.SessionKey, stage domain.StageID, data map[string]any, ttl time.Duration) (*domain.Session, error) {
	var out *domain.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t := now()
		row, err := live(tx, k)
		if err == nil {
			out = row.toDomain()
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}
		// Retire anything still flagged active but past its lifetime.
		if err := scoped(tx, k).Model(&sessionRow{}).Update("active", false).Error; err != nil {
			return fmt.Errorf("retire sessions: %w", err)
		}
		row = &sessionRow{
			ID:             uuid.NewString(),
			BotID:          k.BotID,
			ConversationID: k.ConversationID,
			Active:         true,
			CurrentStage:   int(stage),
			Data:           domain.CloneData(data),
			CreatedAt:      t,
			UpdatedAt:      t,
			ExpiresAt:      t.Add(ports.ResolveTTL(ttl, s.ttl)),
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		out = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) MergeSessionData(ctx context.Context, k domain.SessionKey, partial map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := live(tx, k)
		if err != nil {
			return err
		}
		row.Data = ports.ApplyUpdates(row.Data, partial)
		row.UpdatedAt = now()
		return tx.Save(row).Error
	})
}

func (s *Store) UpdateStage(ctx context.Context, k domain.SessionKey, stage domain.StageID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := live(tx, k)
		if err != nil {
			return err
		}
		row.CurrentStage = int(stage)
		row.UpdatedAt = now()
		return tx.Save(row).Error
	})
}

// EndSession deactivates the row; history is kept.
func (s *Store) EndSession(ctx context.Context, k domain.SessionKey) error {
	err := scoped(s.db.WithContext(ctx), k).Model(&sessionRow{}).Updates(map[string]any{
		"active":     false,
		"updated_at": now(),
	}).Error
	if err != nil {
		return fmt.Errorf("sql: end session: %w", err)
	}
	return nil
}

// CleanExpiredSessions deactivates every active row past its lifetime.
func (s *Store) CleanExpiredSessions(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("active = ? AND expires_at <= ?", true, now()).
		Updates(map[string]any{"active": false})
	if res.Error != nil {
		return 0, fmt.Errorf("sql: clean expired sessions: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
