package dag

// TaskState is the per-run state of a task.
//
// This is separate from TaskGraph, which is immutable and reused across runs.
type TaskState string

const (
	TaskPending  TaskState = "PENDING"
	TaskSkipped  TaskState = "SKIPPED"
	TaskReused   TaskState = "REUSED"
	TaskExecuted TaskState = "EXECUTED"
	TaskFailed   TaskState = "FAILED"
)

// ExecutionState maps task name to its current TaskState.
type ExecutionState map[string]TaskState

// NewExecutionState returns a state with every task of g PENDING.
func NewExecutionState(g *TaskGraph) ExecutionState {
	state := make(ExecutionState, len(g.nodes))
	for _, n := range g.nodes {
		state[n.Name] = TaskPending
	}
	return state
}

// Clone returns a copy of s.
func (s ExecutionState) Clone() ExecutionState {
	cp := make(ExecutionState, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}
