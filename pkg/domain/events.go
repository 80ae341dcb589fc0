package domain

import (
	"context"
	"time"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	BotID          string    `json:"bot_id"`
	ConversationID string    `json:"conversation_id"`
}

// StageEvent represents entry into or exit from a stage.
type StageEvent struct {
	EventBase
	Stage    StageID  `json:"stage"`
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
	// Iteration is the 1-based position of the stage within the current chain.
	Iteration int `json:"iteration"`
}

// ExternalCallEvent represents one outbound http_request or ai_response call.
type ExternalCallEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Kind     string        `json:"kind"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// MessageEvent summarizes the processing of one inbound message.
type MessageEvent struct {
	EventBase
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
	Ended      bool          `json:"ended"`
	Transfer   bool          `json:"transfer"`
	Rejected   bool          `json:"rejected"`
	Err        error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStageEnter       func(context.Context, *StageEvent)
	OnStageLeave       func(context.Context, *StageEvent)
	OnExternalCall     func(context.Context, *ExternalCallEvent)
	OnMessageProcessed func(context.Context, *MessageEvent)
}

// ChainHooks combines several hook sets; each callback fires in order.
func ChainHooks(sets ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range sets {
		out.OnStageEnter = chain(out.OnStageEnter, h.OnStageEnter)
		out.OnStageLeave = chain(out.OnStageLeave, h.OnStageLeave)
		out.OnExternalCall = chain(out.OnExternalCall, h.OnExternalCall)
		out.OnMessageProcessed = chain(out.OnMessageProcessed, h.OnMessageProcessed)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
