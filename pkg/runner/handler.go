package runner

import (
	"context"

	"github.com/aretw0/botflow/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (console) and JSON (structured) modes.
type IOHandler interface {
	// Output presents a bot response.
	Output(ctx context.Context, resp *domain.StageResponse) error

	// Input reads the next user line. io.EOF ends the conversation.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (session ended, transfer...).
	// This is distinct from bot content.
	SystemOutput(ctx context.Context, msg string) error
}

// Processor answers one inbound message. *botflow.Bot satisfies it.
type Processor interface {
	ProcessMessage(ctx context.Context, msg domain.MessageContext) (*domain.StageResponse, error)
}

// SessionEnder is implemented by processors that can drop a conversation's session.
type SessionEnder interface {
	EndSession(ctx context.Context, conversationID string) error
}
