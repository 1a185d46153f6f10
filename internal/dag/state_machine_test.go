package dag

import (
	"testing"

	"pipeweaver/internal/core"
)

func TestStateMachine_Transitions_ValidAndInvalid(t *testing.T) {
	g, err := NewTaskGraph([]core.TaskDef{def("A")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := NewExecutionState(g)
	if state["A"] != TaskPending {
		t.Fatalf("expected PENDING, got %s", state["A"])
	}

	if err := Transition(state, "A", TaskPending, TaskExecuted); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}

	// Terminal states never change.
	for _, to := range []TaskState{TaskPending, TaskFailed, TaskReused, TaskSkipped} {
		if err := Transition(state, "A", TaskExecuted, to); err == nil {
			t.Fatalf("expected error for EXECUTED -> %s", to)
		}
	}

	// Stale expectation is reported.
	if err := Transition(state, "A", TaskPending, TaskFailed); err == nil {
		t.Fatalf("expected error")
	}

	if err := Transition(state, "missing", TaskPending, TaskFailed); err == nil {
		t.Fatalf("expected error for unknown task")
	}

	if state["A"] != TaskExecuted {
		t.Fatalf("invalid transitions must not mutate state, got %s", state["A"])
	}
}

func TestBlockingDependency_CascadesThroughSkips(t *testing.T) {
	g, err := NewTaskGraph([]core.TaskDef{def("A"), def("B", "A"), def("C", "B"), def("D")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := NewExecutionState(g)

	if _, blocked := BlockingDependency(g, state, "B"); blocked {
		t.Fatalf("B must not be blocked while A is pending")
	}

	if err := Transition(state, "A", TaskPending, TaskFailed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cause, blocked := BlockingDependency(g, state, "B")
	if !blocked || cause != "A" {
		t.Fatalf("expected B blocked by A, got %q %v", cause, blocked)
	}
	if err := Transition(state, "B", TaskPending, TaskSkipped); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cause, blocked = BlockingDependency(g, state, "C")
	if !blocked || cause != "B" {
		t.Fatalf("expected C blocked by B, got %q %v", cause, blocked)
	}
	if _, blocked := BlockingDependency(g, state, "D"); blocked {
		t.Fatalf("D has no dependencies and must not be blocked")
	}
}

func TestIsSuccessful(t *testing.T) {
	cases := map[TaskState]bool{
		TaskPending:  false,
		TaskSkipped:  false,
		TaskFailed:   false,
		TaskReused:   true,
		TaskExecuted: true,
	}
	for st, want := range cases {
		if got := IsSuccessful(st); got != want {
			t.Fatalf("IsSuccessful(%s) = %v, want %v", st, got, want)
		}
	}
}
