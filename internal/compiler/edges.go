package compiler

import "github.com/aretw0/botflow/pkg/domain"

// Outgoing returns the edges leaving a stage, in definition order.
func (p *Program) Outgoing(id domain.StageID) []domain.Edge {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.stages[id]
	if !ok {
		return nil
	}
	return p.outgoing[s.Node.ID]
}

// DefaultNext resolves the default exit of a stage: the first edge without a
// handle (or with the "default" handle), else the first outgoing edge.
func (p *Program) DefaultNext(id domain.StageID) *domain.StageID {
	edges := p.Outgoing(id)
	for _, e := range edges {
		if e.IsDefault() {
			return p.target(e)
		}
	}
	if len(edges) > 0 {
		return p.target(edges[0])
	}
	return nil
}

// HandleNext resolves the exit whose handle equals handle. It returns nil when
// no such edge exists.
func (p *Program) HandleNext(id domain.StageID, handle string) *domain.StageID {
	for _, e := range p.Outgoing(id) {
		if e.SourceHandle == handle {
			return p.target(e)
		}
	}
	return nil
}

// HandleOrDefault resolves the exit for handle, falling back to the default exit.
func (p *Program) HandleOrDefault(id domain.StageID, handle string) *domain.StageID {
	if next := p.HandleNext(id, handle); next != nil {
		return next
	}
	return p.DefaultNext(id)
}

func (p *Program) target(e domain.Edge) *domain.StageID {
	to, ok := p.StageFor(e.Target)
	if !ok {
		return nil
	}
	return domain.StagePtr(to)
}
