package cli

import (
	"errors"
	"fmt"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/internal/validator"
	"github.com/aretw0/botflow/pkg/adapters/file"
	"github.com/aretw0/botflow/pkg/domain"
)

// Report describes a compiled flow.
type Report struct {
	Entry  string
	Stages int
	ByType map[domain.NodeType]int
	// Cycle is set when stages can auto-chain into each other forever.
	Cycle  error
	Issues []validator.Issue
}

// Validate compiles the flow file at path, lints its graph and looks for
// auto-chain cycles.
func Validate(path string) (*Report, error) {
	def, err := file.ReadFlow(path)
	if err != nil {
		return nil, err
	}
	program, err := compiler.Compile(def)
	if err != nil {
		return nil, err
	}

	r := &Report{ByType: make(map[domain.NodeType]int)}
	if id, ok := program.NodeFor(program.Entry()); ok {
		r.Entry = id
	}
	for _, id := range program.StageIDs() {
		stage, ok := program.Stage(id)
		if !ok {
			continue
		}
		r.Stages++
		r.ByType[stage.Node.Type]++
	}
	r.Issues = validator.ValidateGraph(program)
	if err := compiler.CheckAutoChainCycles(program); err != nil {
		if !errors.Is(err, compiler.ErrAutoChainCycle) {
			return nil, err
		}
		r.Cycle = err
	}
	return r, nil
}

// String renders the report for the terminal.
func (r *Report) String() string {
	s := fmt.Sprintf("entry: %s\nstages: %d\n", r.Entry, r.Stages)
	for _, t := range domain.NodeTypes {
		if n := r.ByType[t]; n > 0 {
			s += fmt.Sprintf("  %-16s %d\n", t, n)
		}
	}
	for _, issue := range r.Issues {
		s += fmt.Sprintf("warning: %s\n", issue)
	}
	if r.Cycle != nil {
		s += fmt.Sprintf("warning: %v\n", r.Cycle)
	}
	return s
}
