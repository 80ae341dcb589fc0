package domain

import (
	"strings"
	"time"
)

// KeyAwaitingInput is the reserved session key marking a two-phase stage that is
// waiting for the user's next raw reply. Its value is the waiting node id, or nil.
const KeyAwaitingInput = "_awaitingInput"

// IsInternalKey reports whether a session variable is engine-internal state.
// Internal keys are never exposed to AI prompts.
func IsInternalKey(key string) bool {
	return strings.HasPrefix(key, "_")
}

// SessionKey identifies the single active session of a conversation with a bot.
type SessionKey struct {
	ConversationID string `json:"conversation_id"`
	BotID          string `json:"bot_id"`
}

func (k SessionKey) String() string {
	return k.BotID + ":" + k.ConversationID
}

// Session is the persisted execution state of one conversation.
type Session struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	BotID          string         `json:"bot_id"`
	CurrentStage   StageID        `json:"current_stage"`
	Data           map[string]any `json:"data"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

// Key returns the identity of the session.
func (s *Session) Key() SessionKey {
	return SessionKey{ConversationID: s.ConversationID, BotID: s.BotID}
}

// Expired reports whether the session lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AwaitingNode returns the node id recorded under KeyAwaitingInput, if any.
func (s *Session) AwaitingNode() string {
	return AwaitingNode(s.Data)
}

// AwaitingNode reads KeyAwaitingInput from a variable map.
func AwaitingNode(data map[string]any) string {
	v, _ := data[KeyAwaitingInput].(string)
	return v
}

// Clone returns a deep-enough copy: the variable map is copied so callers can
// mutate it without touching the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = CloneData(s.Data)
	return &c
}

// CloneData copies a variable map (values are shared).
func CloneData(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
