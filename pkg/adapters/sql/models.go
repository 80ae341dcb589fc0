package sql

import (
	"time"

	"github.com/aretw0/botflow/pkg/domain"
)

// sessionRow persists one session. Ended and expired sessions stay in the
// table with Active=false; at most one row per (bot, conversation) is active.
type sessionRow struct {
	ID             string         `gorm:"primaryKey;size:36"`
	BotID          string         `gorm:"size:128;not null;index:idx_session_key"`
	ConversationID string         `gorm:"size:128;not null;index:idx_session_key"`
	CurrentStage   int            `gorm:"not null;default:0"`
	Data           map[string]any `gorm:"serializer:json;type:text"`
	Active         bool           `gorm:"not null;index"`
	ExpiresAt      time.Time      `gorm:"not null;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (sessionRow) TableName() string { return "botflow_sessions" }

func (r *sessionRow) toDomain() *domain.Session {
	return &domain.Session{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		BotID:          r.BotID,
		CurrentStage:   domain.StageID(r.CurrentStage),
		Data:           domain.CloneData(r.Data),
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ExpiresAt:      r.ExpiresAt,
	}
}

type departmentRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
}

func (departmentRow) TableName() string { return "botflow_departments" }
