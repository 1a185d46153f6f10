package dag

import (
	"errors"
	"reflect"
	"testing"

	"pipeweaver/internal/core"
)

func def(name string, deps ...string) core.TaskDef {
	return core.TaskDef{Name: name, DependsOn: deps, Pure: true}
}

func TestGraphConstruction_SingleNode(t *testing.T) {
	g, err := NewTaskGraph([]core.TaskDef{def("A")})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if g.Hash() == "" {
		t.Fatalf("expected non-empty graph hash")
	}
	if got := g.TopologicalOrder(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("unexpected topo order: %v", got)
	}
}

func TestGraphConstruction_EmptyRejected(t *testing.T) {
	_, err := NewTaskGraph(nil)
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected invalid graph error, got %v", err)
	}
}

func TestTopologicalOrder_TiesBrokenByName(t *testing.T) {
	g, err := NewTaskGraph([]core.TaskDef{def("b", "d"), def("d"), def("c"), def("a")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "c", "d", "b"}
	if got := g.TopologicalOrder(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTopologicalOrder_InvariantToRegistrationOrder(t *testing.T) {
	defs := []core.TaskDef{def("load"), def("clean", "load"), def("stats", "clean"), def("plot", "clean", "stats"), def("aux")}
	g1, err := NewTaskGraph(defs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reversed := make([]core.TaskDef, len(defs))
	for i := range defs {
		reversed[i] = defs[len(defs)-1-i]
	}
	g2, err := NewTaskGraph(reversed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"aux", "load", "clean", "stats", "plot"}
	if got := g1.TopologicalOrder(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !reflect.DeepEqual(g1.TopologicalOrder(), g2.TopologicalOrder()) {
		t.Fatalf("order depends on registration order: %v vs %v", g1.TopologicalOrder(), g2.TopologicalOrder())
	}
	if g1.Hash() != g2.Hash() {
		t.Fatalf("expected equal graph hashes, got %s vs %s", g1.Hash(), g2.Hash())
	}
}

func TestGraphConstruction_DiamondDependency(t *testing.T) {
	// A -> B, A -> C, B -> D, C -> D
	g, err := NewTaskGraph([]core.TaskDef{def("A"), def("B", "A"), def("C", "A"), def("D", "C", "B")})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if got := g.Dependencies("D"); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Fatalf("unexpected dependencies of D: %v", got)
	}
	if got := g.Dependents("A"); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Fatalf("unexpected dependents of A: %v", got)
	}
	if d, _ := g.Depth("D"); d != 2 {
		t.Fatalf("expected depth 2 for D, got %d", d)
	}

	countToD := 0
	for _, e := range g.Edges() {
		if e.To == "D" {
			countToD++
		}
	}
	if countToD != 2 {
		t.Fatalf("expected D to have 2 incoming edges, got %d", countToD)
	}
}

func TestGraphHash_ChangesWithDefinition(t *testing.T) {
	g1, err := NewTaskGraph([]core.TaskDef{def("A"), def("B", "A")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	impure := def("B", "A")
	impure.Pure = false
	g2, err := NewTaskGraph([]core.TaskDef{def("A"), impure})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g1.Hash() == g2.Hash() {
		t.Fatalf("expected purity to change the graph hash")
	}
}

func TestGraphConstruction_UnknownDependencyRejected(t *testing.T) {
	_, err := NewTaskGraph([]core.TaskDef{def("A", "ghost")})
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected invalid graph error, got %v", err)
	}
}

func TestGraphConstruction_DuplicateNameRejected(t *testing.T) {
	_, err := NewTaskGraph([]core.TaskDef{def("A"), def("A")})
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected invalid graph error, got %v", err)
	}
}

func TestGraphConstruction_InvalidDefinitionRejected(t *testing.T) {
	_, err := NewTaskGraph([]core.TaskDef{def("")})
	if !errors.Is(err, core.ErrInvalidTaskDefinition) {
		t.Fatalf("expected invalid definition error, got %v", err)
	}
}

func TestCycleDetection_SelfLoopRejected(t *testing.T) {
	_, err := NewTaskGraph([]core.TaskDef{def("A", "A")})
	if !errors.Is(err, ErrCycleFound) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestCycleDetection_IndirectCycleRejected(t *testing.T) {
	_, err := NewTaskGraph([]core.TaskDef{def("A", "C"), def("B", "A"), def("C", "B"), def("D")})
	if !errors.Is(err, ErrCycleFound) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	var cycle *CyclicDependencyError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected *CyclicDependencyError, got %T", err)
	}
	want := []string{"A", "B", "C", "A"}
	if !reflect.DeepEqual(cycle.Path, want) {
		t.Fatalf("expected cycle path %v, got %v", want, cycle.Path)
	}
}

func TestCycleDetection_WitnessSkipsTasksDownstreamOfCycle(t *testing.T) {
	_, err := NewTaskGraph([]core.TaskDef{def("A", "C"), def("C", "D"), def("D", "C"), def("E")})
	var cycle *CyclicDependencyError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected *CyclicDependencyError, got %v", err)
	}
	want := []string{"C", "D", "C"}
	if !reflect.DeepEqual(cycle.Path, want) {
		t.Fatalf("expected cycle path %v, got %v", want, cycle.Path)
	}
	if got := err.Error(); got != "cycle detected: C -> D -> C" {
		t.Fatalf("unexpected message %q", got)
	}
}
