package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// TaskStatus is the terminal status recorded for an attempted task.
type TaskStatus string

const (
	StatusSuccess TaskStatus = "success"
	StatusFailure TaskStatus = "failure"
)

// TaskResult is the output of one task execution.
type TaskResult struct {
	Values    map[string]Value
	Artifacts map[string]Artifact
	Status    TaskStatus

	// Error is set only when Status is StatusFailure.
	Error string
}

// NewFailure builds the result recorded for a task that raised an error.
func NewFailure(err error) TaskResult {
	msg := "task failed"
	if err != nil {
		msg = err.Error()
	}
	return TaskResult{
		Values:    map[string]Value{},
		Artifacts: map[string]Artifact{},
		Status:    StatusFailure,
		Error:     msg,
	}
}

// Succeeded reports whether the recorded status is success.
func (r TaskResult) Succeeded() bool { return r.Status == StatusSuccess }

// Equal is deep structural equality. Nil and empty maps compare equal.
func (r TaskResult) Equal(other TaskResult) bool {
	if r.Status != other.Status || r.Error != other.Error {
		return false
	}
	if len(r.Values) != len(other.Values) || len(r.Artifacts) != len(other.Artifacts) {
		return false
	}
	for k, v := range r.Values {
		o, ok := other.Values[k]
		if !ok || !v.Equal(o) {
			return false
		}
	}
	for k, a := range r.Artifacts {
		o, ok := other.Artifacts[k]
		if !ok || !a.Equal(o) {
			return false
		}
	}
	return true
}

// Clone returns a copy whose maps are independent of r.
func (r TaskResult) Clone() TaskResult {
	out := TaskResult{
		Values:    make(map[string]Value, len(r.Values)),
		Artifacts: make(map[string]Artifact, len(r.Artifacts)),
		Status:    r.Status,
		Error:     r.Error,
	}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	for k, a := range r.Artifacts {
		out.Artifacts[k] = a
	}
	return out
}

type taskResultJSON struct {
	Values    map[string]Value    `json:"values"`
	Artifacts map[string]Artifact `json:"artifacts"`
	Status    TaskStatus          `json:"status"`
	Error     string              `json:"error,omitempty"`
}

// MarshalJSON writes empty maps as {} rather than null.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	out := taskResultJSON{Values: r.Values, Artifacts: r.Artifacts, Status: r.Status, Error: r.Error}
	if out.Values == nil {
		out.Values = map[string]Value{}
	}
	if out.Artifacts == nil {
		out.Artifacts = map[string]Artifact{}
	}
	return json.Marshal(out)
}

func (r *TaskResult) UnmarshalJSON(data []byte) error {
	var in taskResultJSON
	if err := decodeStrict(data, &in); err != nil {
		return fmt.Errorf("decode task result: %w", err)
	}
	switch in.Status {
	case StatusSuccess, StatusFailure:
	default:
		return fmt.Errorf("decode task result: invalid status %q", in.Status)
	}
	if in.Values == nil {
		in.Values = map[string]Value{}
	}
	if in.Artifacts == nil {
		in.Artifacts = map[string]Artifact{}
	}
	*r = TaskResult{Values: in.Values, Artifacts: in.Artifacts, Status: in.Status, Error: in.Error}
	return nil
}

// WrapOutput converts the raw return of a task into a TaskResult.
//
// Accepted shapes are TaskResult, *TaskResult, and map[string]any with the
// optional keys "values" and "artifacts". Anything else is an
// *InvalidTaskResultError naming the task and the offending type.
func WrapOutput(task string, raw any) (TaskResult, error) {
	var res TaskResult
	switch out := raw.(type) {
	case TaskResult:
		res = out.Clone()
	case *TaskResult:
		if out == nil {
			return TaskResult{}, &InvalidTaskResultError{Task: task, Type: fmt.Sprintf("%T", raw)}
		}
		res = out.Clone()
	case map[string]any:
		var err error
		if res, err = wrapMap(task, out); err != nil {
			return TaskResult{}, err
		}
	default:
		return TaskResult{}, &InvalidTaskResultError{Task: task, Type: fmt.Sprintf("%T", raw)}
	}
	for _, name := range sortedKeys(res.Artifacts) {
		if err := res.Artifacts[name].Validate(); err != nil {
			return TaskResult{}, &InvalidTaskResultError{Task: task, Cause: fmt.Errorf("artifact %q: %w", name, err)}
		}
	}
	return res, nil
}

func wrapMap(task string, raw map[string]any) (TaskResult, error) {
	res := TaskResult{Values: map[string]Value{}, Artifacts: map[string]Artifact{}}
	for _, key := range sortedKeys(raw) {
		switch key {
		case "values":
			values, err := wrapValues(raw[key])
			if err != nil {
				return TaskResult{}, &InvalidTaskResultError{Task: task, Cause: err}
			}
			res.Values = values
		case "artifacts":
			artifacts, err := wrapArtifacts(raw[key])
			if err != nil {
				return TaskResult{}, &InvalidTaskResultError{Task: task, Cause: err}
			}
			res.Artifacts = artifacts
		default:
			return TaskResult{}, &InvalidTaskResultError{Task: task, Cause: fmt.Errorf("unexpected key %q", key)}
		}
	}
	return res, nil
}

func wrapValues(raw any) (map[string]Value, error) {
	out := map[string]Value{}
	switch m := raw.(type) {
	case nil:
	case map[string]Value:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, x := range m {
			v, err := FromAny(x)
			if err != nil {
				return nil, fmt.Errorf("value %q: %w", k, err)
			}
			out[k] = v
		}
	default:
		return nil, fmt.Errorf("values must be a map, got %T", raw)
	}
	return out, nil
}

func wrapArtifacts(raw any) (map[string]Artifact, error) {
	out := map[string]Artifact{}
	switch m := raw.(type) {
	case nil:
	case map[string]Artifact:
		for k, a := range m {
			out[k] = a
		}
	case map[string]any:
		for k, x := range m {
			a, err := artifactFromAny(x)
			if err != nil {
				return nil, fmt.Errorf("artifact %q: %w", k, err)
			}
			out[k] = a
		}
	default:
		return nil, fmt.Errorf("artifacts must be a map, got %T", raw)
	}
	return out, nil
}

func artifactFromAny(x any) (Artifact, error) {
	switch a := x.(type) {
	case Artifact:
		return a, nil
	case *Artifact:
		if a != nil {
			return *a, nil
		}
	case map[string]any:
		b, err := json.Marshal(a)
		if err != nil {
			return Artifact{}, err
		}
		var out Artifact
		if err := decodeStrict(b, &out); err != nil {
			return Artifact{}, err
		}
		return out, nil
	}
	return Artifact{}, fmt.Errorf("unsupported artifact type %T", x)
}

// PipelineResult is the accumulated state of a pipeline: every attempted
// task's result, and the dependency-scoped state each task was invoked with.
type PipelineResult struct {
	TaskResults map[string]TaskResult
	TaskInputs  map[string]*PipelineResult
}

// NewPipelineResult returns an empty state.
func NewPipelineResult() *PipelineResult {
	return &PipelineResult{
		TaskResults: map[string]TaskResult{},
		TaskInputs:  map[string]*PipelineResult{},
	}
}

// Result returns the TaskResult recorded for task.
func (p *PipelineResult) Result(task string) (TaskResult, error) {
	if p != nil {
		if r, ok := p.TaskResults[task]; ok {
			return r, nil
		}
	}
	return TaskResult{}, &LookupError{Task: task}
}

// Value returns the value named name produced by task.
func (p *PipelineResult) Value(task, name string) (Value, error) {
	r, err := p.Result(task)
	if err != nil {
		return Value{}, err
	}
	v, ok := r.Values[name]
	if !ok {
		return Value{}, &LookupError{Task: task, Kind: ResultValue, Name: name}
	}
	return v, nil
}

// Artifact returns the artifact named name produced by task.
func (p *PipelineResult) Artifact(task, name string) (Artifact, error) {
	r, err := p.Result(task)
	if err != nil {
		return Artifact{}, err
	}
	a, ok := r.Artifacts[name]
	if !ok {
		return Artifact{}, &LookupError{Task: task, Kind: ResultArtifact, Name: name}
	}
	return a, nil
}

// FromSpec resolves spec to a Value or an Artifact.
func (p *PipelineResult) FromSpec(spec ResultSpec) (any, error) {
	switch spec.Kind {
	case ResultValue:
		return p.Value(spec.Task, spec.Name)
	case ResultArtifact:
		return p.Artifact(spec.Task, spec.Name)
	default:
		return nil, fmt.Errorf("unknown result kind %q", spec.Kind)
	}
}

// TaskNames returns the names of recorded task results in lexicographic order.
func (p *PipelineResult) TaskNames() []string {
	if p == nil {
		return nil
	}
	return sortedKeys(p.TaskResults)
}

// Merge overlays next onto p and returns the combined state. Entries of p are
// retained unless next has an entry for the same task. Neither input is
// modified.
func (p *PipelineResult) Merge(next *PipelineResult) *PipelineResult {
	out := p.Clone()
	if next == nil {
		return out
	}
	for k, r := range next.TaskResults {
		out.TaskResults[k] = r.Clone()
	}
	for k, in := range next.TaskInputs {
		out.TaskInputs[k] = in.Clone()
	}
	return out
}

// Clone returns a deep copy. Cloning nil yields an empty state.
func (p *PipelineResult) Clone() *PipelineResult {
	out := NewPipelineResult()
	if p == nil {
		return out
	}
	for k, r := range p.TaskResults {
		out.TaskResults[k] = r.Clone()
	}
	for k, in := range p.TaskInputs {
		out.TaskInputs[k] = in.Clone()
	}
	return out
}

// Equal is deep structural equality over both maps. A nil state equals an
// empty one.
func (p *PipelineResult) Equal(other *PipelineResult) bool {
	var pr, or map[string]TaskResult
	var pi, oi map[string]*PipelineResult
	if p != nil {
		pr, pi = p.TaskResults, p.TaskInputs
	}
	if other != nil {
		or, oi = other.TaskResults, other.TaskInputs
	}
	if len(pr) != len(or) || len(pi) != len(oi) {
		return false
	}
	for k, r := range pr {
		o, ok := or[k]
		if !ok || !r.Equal(o) {
			return false
		}
	}
	for k, in := range pi {
		o, ok := oi[k]
		if !ok || !in.Equal(o) {
			return false
		}
	}
	return true
}

type pipelineResultJSON struct {
	TaskResults map[string]TaskResult      `json:"task_results"`
	TaskInputs  map[string]*PipelineResult `json:"task_inputs"`
}

// MarshalJSON writes empty maps as {} rather than null.
func (p *PipelineResult) MarshalJSON() ([]byte, error) {
	out := pipelineResultJSON{TaskResults: map[string]TaskResult{}, TaskInputs: map[string]*PipelineResult{}}
	if p != nil {
		for k, r := range p.TaskResults {
			out.TaskResults[k] = r
		}
		for k, in := range p.TaskInputs {
			if in == nil {
				in = NewPipelineResult()
			}
			out.TaskInputs[k] = in
		}
	}
	return json.Marshal(out)
}

func (p *PipelineResult) UnmarshalJSON(data []byte) error {
	var in pipelineResultJSON
	if err := decodeStrict(data, &in); err != nil {
		return fmt.Errorf("decode pipeline result: %w", err)
	}
	out := NewPipelineResult()
	for k, r := range in.TaskResults {
		out.TaskResults[k] = r
	}
	for k, nested := range in.TaskInputs {
		if nested == nil {
			nested = NewPipelineResult()
		}
		out.TaskInputs[k] = nested
	}
	*p = *out
	return nil
}

// decodeStrict rejects unknown fields and trailing data.
func decodeStrict(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("trailing content")
	}
	return nil
}

// sortedKeys returns the keys of m in lexicographic order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
