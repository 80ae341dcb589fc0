// Package validator lints compiled flows for authoring mistakes that compile
// but leave parts of a conversation unusable.
package validator

import (
	"fmt"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/pkg/domain"
)

// Issue kinds.
const (
	Unreachable = "unreachable"
	DeadEnd     = "dead_end"
)

// Issue is one finding about a node.
type Issue struct {
	Kind   string
	NodeID string
}

func (i Issue) String() string {
	switch i.Kind {
	case Unreachable:
		return fmt.Sprintf("node %q cannot be reached from the start node", i.NodeID)
	case DeadEnd:
		return fmt.Sprintf("node %q has no exit and is not an end node", i.NodeID)
	default:
		return fmt.Sprintf("%s: %s", i.Kind, i.NodeID)
	}
}

// ValidateGraph crawls the program from its entry stage and reports nodes no
// conversation can reach, plus non-end nodes without any exit. Issues follow
// stage order.
func ValidateGraph(p *compiler.Program) []Issue {
	visited := make(map[domain.StageID]bool)
	queue := []domain.StageID{p.Entry()}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		for _, e := range p.Outgoing(current) {
			if to, ok := p.StageFor(e.Target); ok && !visited[to] {
				queue = append(queue, to)
			}
		}
	}

	var issues []Issue
	for _, id := range p.StageIDs() {
		stage, ok := p.Stage(id)
		if !ok {
			continue
		}
		if !visited[id] {
			issues = append(issues, Issue{Kind: Unreachable, NodeID: stage.Node.ID})
		}
		if !terminal(stage.Node.Type) && len(p.Outgoing(id)) == 0 {
			issues = append(issues, Issue{Kind: DeadEnd, NodeID: stage.Node.ID})
		}
	}
	return issues
}

// terminal reports whether a node type may end the flow without an exit.
// A start with no exit ends the session on its own.
func terminal(t domain.NodeType) bool {
	return t == domain.NodeEnd || t == domain.NodeStart
}
