package runner

import (
	"context"

	"github.com/aretw0/botflow/pkg/domain"
)

// Notifier prints interim messages of ai_response nodes through an IOHandler
// before the response of the chain arrives.
type Notifier struct {
	Handler IOHandler
}

func (n Notifier) Notify(ctx context.Context, _ domain.MessageContext, text string) error {
	return n.Handler.Output(ctx, &domain.StageResponse{Message: text})
}
