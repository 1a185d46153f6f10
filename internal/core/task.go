package core

import (
	"context"
	"fmt"
)

// TaskFunc is the body of a task. The returned value is converted with
// WrapOutput.
type TaskFunc func(ctx context.Context, args Args) (any, error)

// Task pairs a definition with the function that implements it.
type Task struct {
	def TaskDef
	fn  TaskFunc
}

// TaskOption configures a task under construction.
type TaskOption func(*TaskDef)

// DependsOn declares upstream tasks.
func DependsOn(names ...string) TaskOption {
	return func(d *TaskDef) { d.DependsOn = append(d.DependsOn, names...) }
}

// Impure marks the task as never reusable.
func Impure() TaskOption {
	return func(d *TaskDef) { d.Pure = false }
}

// WithPurity sets purity explicitly.
func WithPurity(pure bool) TaskOption {
	return func(d *TaskDef) { d.Pure = pure }
}

// WithState binds param to the dependency-scoped PipelineResult.
func WithState(param string) TaskOption {
	return func(d *TaskDef) {
		d.Params = append(d.Params, ParameterSpec{Name: param, Kind: FullPipelineState})
	}
}

// WithValue binds param to the value name produced by task.
func WithValue(param, task, name string) TaskOption {
	return WithResult(param, ValueOf(task, name))
}

// WithArtifact binds param to the artifact name produced by task.
func WithArtifact(param, task, name string) TaskOption {
	return WithResult(param, ArtifactOf(task, name))
}

// WithResult binds param to spec.
func WithResult(param string, spec ResultSpec) TaskOption {
	return func(d *TaskDef) {
		d.Params = append(d.Params, ParameterSpec{Name: param, Kind: Explicit, Result: &spec})
	}
}

// WithSelector binds param to the return of sel.
func WithSelector(param string, sel Selector) TaskOption {
	return func(d *TaskDef) {
		d.Params = append(d.Params, ParameterSpec{Name: param, Kind: Explicit, Selector: sel})
	}
}

// NewTask builds a pure task named name. Options can declare dependencies,
// purity and parameter bindings. The definition is validated before return.
func NewTask(name string, fn TaskFunc, opts ...TaskOption) (*Task, error) {
	def := TaskDef{Name: name, Pure: true}
	for _, opt := range opts {
		opt(&def)
	}
	if fn == nil {
		return nil, invalidDefinitionf(name, "task function is nil")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Task{def: def.Clone(), fn: fn}, nil
}

// MustTask is NewTask that panics on an invalid definition.
func MustTask(name string, fn TaskFunc, opts ...TaskOption) *Task {
	t, err := NewTask(name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Task) Name() string { return t.def.Name }

// Def returns a copy of the task's definition.
func (t *Task) Def() TaskDef { return t.def.Clone() }

// Invoke calls the task function. Panics are converted to errors.
func (t *Task) Invoke(ctx context.Context, args Args) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.def.Name, r)
		}
	}()
	return t.fn(ctx, args)
}

// Args carries the bound parameters of one invocation.
type Args struct {
	params map[string]any
	state  *PipelineResult
}

// NewArgs builds the arguments for one invocation. state is the
// dependency-scoped state.
func NewArgs(state *PipelineResult, params map[string]any) Args {
	p := make(map[string]any, len(params))
	for k, v := range params {
		p[k] = v
	}
	return Args{params: p, state: state}
}

// Get returns the raw bound parameter.
func (a Args) Get(name string) (any, bool) {
	v, ok := a.params[name]
	return v, ok
}

// Value returns a parameter bound to a Value.
func (a Args) Value(name string) (Value, error) {
	v, ok := a.params[name]
	if !ok {
		return Value{}, fmt.Errorf("parameter %q is not bound", name)
	}
	switch x := v.(type) {
	case Value:
		return x, nil
	default:
		return FromAny(x)
	}
}

// Artifact returns a parameter bound to an Artifact.
func (a Args) Artifact(name string) (Artifact, error) {
	v, ok := a.params[name]
	if !ok {
		return Artifact{}, fmt.Errorf("parameter %q is not bound", name)
	}
	art, ok := v.(Artifact)
	if !ok {
		return Artifact{}, fmt.Errorf("parameter %q is %T, not an artifact", name, v)
	}
	return art, nil
}

// State returns the dependency-scoped PipelineResult of the invocation.
func (a Args) State() *PipelineResult {
	if a.state == nil {
		return NewPipelineResult()
	}
	return a.state
}
