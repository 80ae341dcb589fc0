package dsl

import (
	"fmt"

	"github.com/aretw0/botflow/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	order   []string
	nodes   map[string]*NodeBuilder
	timeout int
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id, Data: make(map[string]any)},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// SessionTimeout sets the session lifetime of the flow, in seconds.
func (b *Builder) SessionTimeout(seconds int) *Builder {
	b.timeout = seconds
	return b
}

// Build assembles the flow definition. Every node must have a type and every
// edge must target a node that was added.
func (b *Builder) Build() (*domain.FlowDefinition, error) {
	def := &domain.FlowDefinition{SessionTimeout: b.timeout}
	for _, id := range b.order {
		nb := b.nodes[id]
		if nb.node.Type == "" {
			return nil, fmt.Errorf("node %q has no type", id)
		}
		def.Nodes = append(def.Nodes, nb.node)
	}
	for _, id := range b.order {
		for _, e := range b.nodes[id].edges {
			if _, ok := b.nodes[e.Target]; !ok {
				return nil, fmt.Errorf("node %q links to unknown node %q", id, e.Target)
			}
			e.ID = fmt.Sprintf("e%d", len(def.Edges)+1)
			def.Edges = append(def.Edges, e)
		}
	}
	return def, nil
}

// MustBuild is Build for flows known to be well formed; it panics on error.
func (b *Builder) MustBuild() *domain.FlowDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
