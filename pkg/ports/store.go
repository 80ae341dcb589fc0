package ports

import (
	"context"
	"time"

	"github.com/aretw0/botflow/pkg/domain"
)

// DefaultSessionTTL is used when neither the flow nor the store configure a lifetime.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore persists session state. There is at most one active session per key.
//
// Sessions expire at ExpiresAt, fixed when the session is created.
// An expired session is never returned as active, even before a sweep removes it.
type SessionStore interface {
	// GetActiveSession returns the active, unexpired session for key.
	// Returns domain.ErrSessionNotFound otherwise.
	GetActiveSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)

	// UpsertSession creates the active session for key at stage with data.
	// An existing active session is returned unchanged. A ttl of zero selects
	// the store default.
	UpsertSession(ctx context.Context, key domain.SessionKey, stage domain.StageID, data map[string]any, ttl time.Duration) (*domain.Session, error)

	// MergeSessionData shallow-merges partial into the session variables.
	// A nil value removes the variable.
	MergeSessionData(ctx context.Context, key domain.SessionKey, partial map[string]any) error

	// UpdateStage moves the session pointer.
	UpdateStage(ctx context.Context, key domain.SessionKey, stage domain.StageID) error

	// EndSession deactivates the session. Ending a missing session is not an error.
	EndSession(ctx context.Context, key domain.SessionKey) error

	// CleanExpiredSessions deactivates or deletes every expired session and
	// returns how many were affected.
	CleanExpiredSessions(ctx context.Context) (int, error)
}

// ApplyUpdates merges partial into data following the MergeSessionData rules.
// It is shared by store implementations and the engine's local copy.
func ApplyUpdates(data map[string]any, partial map[string]any) map[string]any {
	if data == nil {
		data = make(map[string]any, len(partial))
	}
	for k, v := range partial {
		if v == nil {
			delete(data, k)
			continue
		}
		data[k] = v
	}
	return data
}

// ResolveTTL picks the effective lifetime: ttl when positive, else fallback,
// else DefaultSessionTTL.
func ResolveTTL(ttl, fallback time.Duration) time.Duration {
	switch {
	case ttl > 0:
		return ttl
	case fallback > 0:
		return fallback
	default:
		return DefaultSessionTTL
	}
}
