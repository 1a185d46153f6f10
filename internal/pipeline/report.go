package pipeline

import (
	"pipeweaver/internal/core"
	"pipeweaver/internal/dag"
	"pipeweaver/internal/state"
)

// RunReport describes one run.
type RunReport struct {
	RunID     string
	GraphHash dag.GraphHash

	// Order is the planned execution order, truncated at the up-to task.
	Order []string

	// States holds the final state of every task in the graph. Tasks beyond
	// the stopping point remain PENDING.
	States dag.ExecutionState

	// Result holds the results and inputs of the tasks reused or executed in
	// this run. Skipped tasks are absent.
	Result *core.PipelineResult

	// Outcomes lists one entry per task reached, in execution order.
	Outcomes []state.TaskOutcome

	TraceHash string
}

// Succeeded reports whether every planned task was reused or executed.
func (r *RunReport) Succeeded() bool {
	if r == nil {
		return false
	}
	for _, name := range r.Order {
		if !dag.IsSuccessful(r.States[name]) {
			return false
		}
	}
	return true
}

// Count returns how many tasks ended in s.
func (r *RunReport) Count(s dag.TaskState) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, name := range r.Order {
		if r.States[name] == s {
			n++
		}
	}
	return n
}
