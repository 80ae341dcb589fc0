// Package compiler turns a flow definition into an addressable stage table.
package compiler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/botflow/pkg/domain"
)

// Stage is the compiled, addressable form of a node.
type Stage struct {
	ID      domain.StageID
	Node    domain.Node
	Payload any // typed payload, e.g. *domain.AskQuestionData
}

// Validator returns the input rule declared by the stage, if any.
// Only ask_question stages can declare one.
func (s *Stage) Validator() *domain.ValidationRule {
	if q, ok := s.Payload.(*domain.AskQuestionData); ok && q.Validation.Declared() {
		return q.Validation
	}
	return nil
}

// Program is a compiled flow: the stage table plus id <-> address maps.
// It is owned by a single bot instance.
type Program struct {
	mu       sync.RWMutex
	stages   map[domain.StageID]*Stage
	byNode   map[string]domain.StageID
	outgoing map[string][]domain.Edge
	entry    domain.StageID
	next     domain.StageID
}

// Compile validates def and assigns one stage address per node, in definition order.
func Compile(def *domain.FlowDefinition) (*Program, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil flow definition", domain.ErrMalformedGraph)
	}

	p := &Program{
		stages:   make(map[domain.StageID]*Stage, len(def.Nodes)),
		byNode:   make(map[string]domain.StageID, len(def.Nodes)),
		outgoing: make(map[string][]domain.Edge),
		entry:    domain.NoStage,
	}

	starts := 0
	for _, node := range def.Nodes {
		stage, err := p.newStage(node)
		if err != nil {
			return nil, err
		}
		if node.Type == domain.NodeStart {
			starts++
			p.entry = stage.ID
		}
	}
	if starts == 0 {
		return nil, domain.ErrMissingStartNode
	}
	if starts > 1 {
		return nil, fmt.Errorf("%w: %d start nodes, expected exactly one", domain.ErrMalformedGraph, starts)
	}

	for _, edge := range def.Edges {
		if err := p.addEdge(edge); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// newStage registers node under the next free address. Callers hold mu or own p.
func (p *Program) newStage(node domain.Node) (*Stage, error) {
	if node.ID == "" {
		return nil, fmt.Errorf("%w: node without id", domain.ErrMalformedGraph)
	}
	if _, dup := p.byNode[node.ID]; dup {
		return nil, fmt.Errorf("%w: duplicate node id %q", domain.ErrMalformedGraph, node.ID)
	}
	if !node.Type.Valid() {
		return nil, fmt.Errorf("%w: node %q has unknown type %q", domain.ErrMalformedGraph, node.ID, node.Type)
	}
	payload, err := domain.DecodePayload(node)
	if err != nil {
		return nil, fmt.Errorf("%w: node %q: %v", domain.ErrMalformedGraph, node.ID, err)
	}

	stage := &Stage{ID: p.next, Node: node, Payload: payload}
	p.stages[stage.ID] = stage
	p.byNode[node.ID] = stage.ID
	p.next++
	return stage, nil
}

func (p *Program) addEdge(edge domain.Edge) error {
	if _, ok := p.byNode[edge.Source]; !ok {
		return fmt.Errorf("%w: edge %q has unknown source %q", domain.ErrMalformedGraph, edge.ID, edge.Source)
	}
	if _, ok := p.byNode[edge.Target]; !ok {
		return fmt.Errorf("%w: edge %q has unknown target %q", domain.ErrMalformedGraph, edge.ID, edge.Target)
	}
	p.outgoing[edge.Source] = append(p.outgoing[edge.Source], edge)
	return nil
}

// Entry returns the address of the start node.
func (p *Program) Entry() domain.StageID {
	return p.entry
}

// Stage resolves an address.
func (p *Program) Stage(id domain.StageID) (*Stage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.stages[id]
	return s, ok
}

// StageFor resolves a node id into its address.
func (p *Program) StageFor(nodeID string) (domain.StageID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byNode[nodeID]
	return id, ok
}

// NodeFor resolves an address into its node id.
func (p *Program) NodeFor(id domain.StageID) (string, bool) {
	s, ok := p.Stage(id)
	if !ok {
		return "", false
	}
	return s.Node.ID, true
}

// Mapping returns a copy of the node id -> address map.
func (p *Program) Mapping() map[string]domain.StageID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]domain.StageID, len(p.byNode))
	for k, v := range p.byNode {
		out[k] = v
	}
	return out
}

// StageIDs lists every available address in ascending order.
func (p *Program) StageIDs() []domain.StageID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]domain.StageID, 0, len(p.stages))
	for id := range p.stages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasStage reports whether id is addressable.
func (p *Program) HasStage(id domain.StageID) bool {
	_, ok := p.Stage(id)
	return ok
}

// AddStage registers an extra node at runtime, wiring its outgoing edges.
// Edges must originate at node and target existing nodes.
func (p *Program) AddStage(node domain.Node, edges ...domain.Edge) (domain.StageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if node.Type == domain.NodeStart {
		return domain.NoStage, fmt.Errorf("%w: cannot add a second start node", domain.ErrMalformedGraph)
	}
	for _, e := range edges {
		if e.Source != node.ID {
			return domain.NoStage, fmt.Errorf("%w: edge %q does not originate at %q", domain.ErrMalformedGraph, e.ID, node.ID)
		}
	}
	stage, err := p.newStage(node)
	if err != nil {
		return domain.NoStage, err
	}
	for _, e := range edges {
		if err := p.addEdge(e); err != nil {
			p.dropStage(stage.ID)
			return domain.NoStage, err
		}
	}
	return stage.ID, nil
}

// RemoveStage unregisters an address together with its outgoing edges.
// The entry stage cannot be removed.
func (p *Program) RemoveStage(id domain.StageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == p.entry {
		return false
	}
	return p.dropStage(id)
}

func (p *Program) dropStage(id domain.StageID) bool {
	s, ok := p.stages[id]
	if !ok {
		return false
	}
	delete(p.stages, id)
	delete(p.byNode, s.Node.ID)
	delete(p.outgoing, s.Node.ID)
	return true
}
