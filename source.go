package botflow

import (
	"context"
	"fmt"

	"github.com/aretw0/botflow/pkg/ports"
	"github.com/aretw0/botflow/pkg/registry"
)

// FromSource returns a registry constructor that builds each bot from the
// flow currently published in source. Hosts that reload bots should pass a
// shared WithSessionManager so an old and a new instance of the same bot
// never hold different locks for one conversation.
func FromSource(source ports.FlowSource, opts ...Option) registry.Constructor[*Bot] {
	return func(ctx context.Context, id string) (*Bot, error) {
		def, err := source.LoadFlow(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load flow: %w", err)
		}
		return New(id, def, opts...), nil
	}
}

// RegisterAll registers a FromSource constructor for every published flow
// and returns the registered ids.
func RegisterAll(ctx context.Context, reg *registry.Registry[*Bot], source ports.FlowSource, opts ...Option) ([]string, error) {
	ids, err := source.ListFlows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	ctor := FromSource(source, opts...)
	for _, id := range ids {
		reg.Register(id, ctor)
	}
	return ids, nil
}
