package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
)

// ErrAutoChainCycle is reported when stages can auto-chain into each other forever.
var ErrAutoChainCycle = errors.New("auto-chain cycle")

// branches reports whether exits of this node type wait for, or depend on, a
// decision. Such exits are expected to loop and are not checked.
func branches(t domain.NodeType) bool {
	return t.Interactive() || t == domain.NodeCondition || t == domain.NodeEnd
}

// CheckAutoChainCycles looks for cycles made only of auto-chaining edges.
// The runtime iteration ceiling already guarantees termination; this check lets
// authors catch such loops before publishing.
func CheckAutoChainCycles(p *Program) error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[domain.StageID]int)
	var path []string
	var found []string

	var visit func(id domain.StageID) bool
	visit = func(id domain.StageID) bool {
		color[id] = grey
		s, _ := p.Stage(id)
		path = append(path, s.Node.ID)
		if !branches(s.Node.Type) {
			for _, e := range p.Outgoing(id) {
				to, ok := p.StageFor(e.Target)
				if !ok {
					continue
				}
				switch color[to] {
				case grey:
					found = cyclePath(path, e.Target)
					return true
				case white:
					if visit(to) {
						return true
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range p.StageIDs() {
		if color[id] == white && visit(id) {
			return fmt.Errorf("%w: %s", ErrAutoChainCycle, strings.Join(found, " -> "))
		}
	}
	return nil
}

func cyclePath(path []string, back string) []string {
	for i, id := range path {
		if id == back {
			out := append([]string{}, path[i:]...)
			return append(out, back)
		}
	}
	return append(path, back)
}
