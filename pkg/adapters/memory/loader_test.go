package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Contract(t *testing.T) {
	flows := map[string]*domain.FlowDefinition{
		"support": {Nodes: []domain.Node{{ID: "s", Type: domain.NodeStart}}},
		"sales": {
			Nodes: []domain.Node{{ID: "s", Type: domain.NodeStart}, {ID: "e", Type: domain.NodeEnd}},
			Edges: []domain.Edge{{ID: "e1", Source: "s", Target: "e"}},
		},
	}
	ports.RunFlowSourceContract(t, memory.NewLoader(flows), flows)
}

func TestLoader_PublishUnpublish(t *testing.T) {
	loader := memory.NewLoader(nil)
	ctx := context.Background()

	require.NoError(t, loader.Publish(ctx, "bot", &domain.FlowDefinition{}))
	assert.Error(t, loader.Publish(ctx, "", &domain.FlowDefinition{}))

	_, err := loader.LoadFlow(ctx, "bot")
	require.NoError(t, err)

	require.NoError(t, loader.Unpublish(ctx, "bot"))
	_, err = loader.LoadFlow(ctx, "bot")
	assert.ErrorIs(t, err, domain.ErrBotNotFound)
}
