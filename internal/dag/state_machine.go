package dag

import "fmt"

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s TaskState) bool {
	switch s {
	case TaskExecuted, TaskReused, TaskFailed, TaskSkipped:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the state satisfies dependents.
//
// An executed task whose result recorded a failure status is moved to
// TaskFailed, never TaskExecuted.
func IsSuccessful(s TaskState) bool {
	return s == TaskExecuted || s == TaskReused
}

// Transition performs a validated transition for a single task.
//
// The caller supplies the expected prior state (from) so that a stale view is
// reported instead of silently overwritten. The state map is mutated if and
// only if the transition is valid.
func Transition(state ExecutionState, taskName string, from, to TaskState) error {
	cur, ok := state[taskName]
	if !ok {
		return fmt.Errorf("unknown task in state: %q", taskName)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", taskName, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", taskName, from, to)
	}
	state[taskName] = to
	return nil
}

func isAllowedTransition(from, to TaskState) bool {
	return from == TaskPending && IsTerminal(to)
}

// BlockingDependency returns the first direct dependency of taskName, in name
// order, that is FAILED or SKIPPED. Skips therefore cascade: a task downstream
// of a skipped task is itself blocked.
func BlockingDependency(g *TaskGraph, state ExecutionState, taskName string) (string, bool) {
	node, ok := g.nodesByName[taskName]
	if !ok {
		return "", false
	}
	for _, p := range g.incoming[node.canonicalIndex] {
		name := g.nodes[p].Name
		switch state[name] {
		case TaskFailed, TaskSkipped:
			return name, true
		}
	}
	return "", false
}
