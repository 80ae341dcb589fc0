package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/botflow/pkg/domain"
)

// loggingHooks traces stage flow at debug level.
func loggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			logger.Debug("Enter stage",
				"bot_id", e.BotID, "conversation_id", e.ConversationID,
				"stage", e.Stage, "node_id", e.NodeID, "type", e.NodeType, "iteration", e.Iteration)
		},
		OnExternalCall: func(ctx context.Context, e *domain.ExternalCallEvent) {
			if e.Err != nil {
				logger.Debug("External call failed", "bot_id", e.BotID, "node_id", e.NodeID, "kind", e.Kind, "err", e.Err)
				return
			}
			logger.Debug("External call", "bot_id", e.BotID, "node_id", e.NodeID, "kind", e.Kind, "duration", e.Duration)
		},
		OnMessageProcessed: func(ctx context.Context, e *domain.MessageEvent) {
			logger.Debug("Message processed",
				"bot_id", e.BotID, "conversation_id", e.ConversationID,
				"iterations", e.Iterations, "duration", e.Duration, "ended", e.Ended)
		},
	}
}
