package pipeline

import (
	"pipeweaver/internal/core"
	"pipeweaver/internal/dag"
)

// scopedState collects the current-run results of the direct dependencies of
// name. It is both the state handed to the task and the inputs recorded for
// it.
func scopedState(g *dag.TaskGraph, name string, current *core.PipelineResult) *core.PipelineResult {
	scoped := core.NewPipelineResult()
	for _, dep := range g.Dependencies(name) {
		if r, ok := current.TaskResults[dep]; ok {
			scoped.TaskResults[dep] = r.Clone()
		}
	}
	return scoped
}

// bindArgs resolves every parameter of def against scoped. Tasks and
// selectors receive copies, so nothing they do can alter the recorded inputs.
func bindArgs(def core.TaskDef, scoped *core.PipelineResult) (core.Args, error) {
	params := make(map[string]any, len(def.Params))
	for _, p := range def.Params {
		switch p.Kind {
		case core.FullPipelineState:
			params[p.Name] = scoped.Clone()
		case core.Explicit:
			v, err := bindExplicit(p, scoped)
			if err != nil {
				return core.Args{}, &ArgumentError{Task: def.Name, Param: p.Name, Err: err}
			}
			params[p.Name] = v
		}
	}
	return core.NewArgs(scoped.Clone(), params), nil
}

func bindExplicit(p core.ParameterSpec, scoped *core.PipelineResult) (any, error) {
	if p.Selector != nil {
		return p.Selector(scoped.Clone())
	}
	return scoped.FromSpec(*p.Result)
}
