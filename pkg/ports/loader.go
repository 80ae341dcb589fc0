package ports

import (
	"context"

	"github.com/aretw0/botflow/pkg/domain"
)

// FlowSource retrieves published flow definitions.
type FlowSource interface {
	// LoadFlow returns the definition published for botID.
	// Returns domain.ErrBotNotFound when there is none.
	LoadFlow(ctx context.Context, botID string) (*domain.FlowDefinition, error)

	// ListFlows returns the ids of every bot with a published flow, sorted.
	ListFlows(ctx context.Context) ([]string, error)
}

// FlowPublisher stores and withdraws flow definitions. Publishing replaces any
// previous definition of the bot.
type FlowPublisher interface {
	Publish(ctx context.Context, botID string, def *domain.FlowDefinition) error
	Unpublish(ctx context.Context, botID string) error
}
