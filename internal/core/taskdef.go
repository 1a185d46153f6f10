package core

import (
	"errors"
	"fmt"
)

// ResultKind distinguishes the two namespaces of a TaskResult.
type ResultKind string

const (
	ResultValue    ResultKind = "value"
	ResultArtifact ResultKind = "artifact"
)

// ResultSpec names one output of one task.
type ResultSpec struct {
	Task string
	Kind ResultKind
	Name string
}

// ValueOf references the value name produced by task.
func ValueOf(task, name string) ResultSpec {
	return ResultSpec{Task: task, Kind: ResultValue, Name: name}
}

// ArtifactOf references the artifact name produced by task.
func ArtifactOf(task, name string) ResultSpec {
	return ResultSpec{Task: task, Kind: ResultArtifact, Name: name}
}

func (s ResultSpec) String() string {
	return fmt.Sprintf("%s.%s.%s", s.Task, s.Kind, s.Name)
}

// ParamKind selects how a parameter is bound at invocation time.
type ParamKind int

const (
	// FullPipelineState binds the dependency-scoped PipelineResult.
	FullPipelineState ParamKind = iota + 1
	// Explicit binds a single output, named by a ResultSpec or produced by a
	// Selector.
	Explicit
)

func (k ParamKind) String() string {
	switch k {
	case FullPipelineState:
		return "full_pipeline_state"
	case Explicit:
		return "explicit"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// Selector derives a parameter from the dependency-scoped state.
type Selector func(state *PipelineResult) (any, error)

// ParameterSpec describes how one task parameter is bound.
type ParameterSpec struct {
	Name string
	Kind ParamKind

	// Result is set for Explicit parameters bound to a named output.
	Result *ResultSpec

	// Selector is set for Explicit parameters computed from the state.
	Selector Selector
}

// TaskDef is the static description of a task. It is treated as immutable
// once returned by NewTask.
type TaskDef struct {
	Name      string
	DependsOn []string
	Pure      bool
	Params    []ParameterSpec
}

// Validate checks the definition in isolation. Unknown dependencies and
// cycles, including a task depending on itself, are reported by the graph.
func (d TaskDef) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, invalidDefinitionf("", "name is required"))
	}

	deps := make(map[string]struct{}, len(d.DependsOn))
	for _, dep := range d.DependsOn {
		if dep == "" {
			errs = append(errs, invalidDefinitionf(d.Name, "empty dependency name"))
		}
		if _, dup := deps[dep]; dup {
			errs = append(errs, invalidDefinitionf(d.Name, "duplicate dependency %q", dep))
		}
		deps[dep] = struct{}{}
	}

	names := make(map[string]struct{}, len(d.Params))
	fullState := 0
	for _, p := range d.Params {
		if p.Name == "" {
			errs = append(errs, invalidDefinitionf(d.Name, "parameter name is required"))
		}
		if _, dup := names[p.Name]; dup {
			errs = append(errs, invalidDefinitionf(d.Name, "duplicate parameter %q", p.Name))
		}
		names[p.Name] = struct{}{}

		switch p.Kind {
		case FullPipelineState:
			fullState++
			if p.Result != nil || p.Selector != nil {
				errs = append(errs, invalidDefinitionf(d.Name, "parameter %q: full state parameter takes no result or selector", p.Name))
			}
		case Explicit:
			errs = append(errs, validateExplicit(d.Name, p, deps)...)
		default:
			errs = append(errs, invalidDefinitionf(d.Name, "parameter %q: unknown kind %s", p.Name, p.Kind))
		}
	}
	if fullState > 1 {
		errs = append(errs, invalidDefinitionf(d.Name, "at most one full state parameter is allowed"))
	}
	return errors.Join(errs...)
}

func validateExplicit(task string, p ParameterSpec, deps map[string]struct{}) []error {
	switch {
	case p.Result != nil && p.Selector != nil:
		return []error{invalidDefinitionf(task, "parameter %q: result and selector are mutually exclusive", p.Name)}
	case p.Selector != nil:
		return nil
	case p.Result == nil:
		return []error{invalidDefinitionf(task, "parameter %q: explicit parameter needs a result or a selector", p.Name)}
	}

	var errs []error
	r := p.Result
	if r.Kind != ResultValue && r.Kind != ResultArtifact {
		errs = append(errs, invalidDefinitionf(task, "parameter %q: unknown result kind %q", p.Name, r.Kind))
	}
	if r.Name == "" {
		errs = append(errs, invalidDefinitionf(task, "parameter %q: result name is required", p.Name))
	}
	if _, ok := deps[r.Task]; !ok {
		errs = append(errs, invalidDefinitionf(task, "parameter %q references %q which is not a declared dependency", p.Name, r.Task))
	}
	return errs
}

// Clone returns a copy that shares no slices with d.
func (d TaskDef) Clone() TaskDef {
	out := TaskDef{Name: d.Name, Pure: d.Pure}
	if d.DependsOn != nil {
		out.DependsOn = append([]string(nil), d.DependsOn...)
	}
	if d.Params != nil {
		out.Params = make([]ParameterSpec, len(d.Params))
		for i, p := range d.Params {
			out.Params[i] = p
			if p.Result != nil {
				r := *p.Result
				out.Params[i].Result = &r
			}
		}
	}
	return out
}
