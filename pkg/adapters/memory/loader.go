package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/botflow/pkg/domain"
)

// Loader implements ports.FlowSource using an in-memory map.
// Flows can be published and unpublished at runtime.
type Loader struct {
	mu    sync.RWMutex
	flows map[string]*domain.FlowDefinition
}

// NewLoader creates a Loader seeded with the given flows, keyed by bot id.
func NewLoader(flows map[string]*domain.FlowDefinition) *Loader {
	l := &Loader{flows: make(map[string]*domain.FlowDefinition, len(flows))}
	for id, def := range flows {
		l.flows[id] = def
	}
	return l
}

// Publish stores (or replaces) the flow of a bot.
func (l *Loader) Publish(ctx context.Context, botID string, def *domain.FlowDefinition) error {
	if botID == "" {
		return fmt.Errorf("bot id is required")
	}
	if def == nil {
		return fmt.Errorf("flow definition for %q is nil", botID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flows[botID] = def
	return nil
}

// Unpublish removes the flow of a bot.
func (l *Loader) Unpublish(ctx context.Context, botID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.flows, botID)
	return nil
}

func (l *Loader) LoadFlow(ctx context.Context, botID string) (*domain.FlowDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.flows[botID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBotNotFound, botID)
	}
	return def, nil
}

func (l *Loader) ListFlows(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.flows))
	for k := range l.flows {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
