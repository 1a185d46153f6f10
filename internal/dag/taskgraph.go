package dag

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"

	"pipeweaver/internal/core"
)

type edgeIndex struct {
	from int
	to   int
}

// TaskGraph is an immutable, validated DAG of task definitions.
//
// It is safe for concurrent read access.
type TaskGraph struct {
	nodesByName map[string]*TaskNode
	nodes       []*TaskNode // canonical order: by name

	edges []edgeIndex // sorted

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending
	indeg    []int   // by canonical index
	depth    []int   // by canonical index (topological depth)
	order    []int   // execution order, smallest ready name first

	hash GraphHash
}

// NewTaskGraph builds and validates a TaskGraph with one node per definition
// and one edge per declared dependency.
//
// Validation runs immediately and rejects:
//   - an empty definition list
//   - invalid definitions (see core.TaskDef.Validate)
//   - duplicate task names
//   - dependencies on unknown tasks
//   - self-dependencies and any other cycle
func NewTaskGraph(defs []core.TaskDef) (*TaskGraph, error) {
	if len(defs) == 0 {
		return nil, invalidf("no tasks")
	}

	nodesByName := make(map[string]*TaskNode, len(defs))
	nodes := make([]*TaskNode, 0, len(defs))

	var defErrs []error
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			defErrs = append(defErrs, err)
			continue
		}
		if _, exists := nodesByName[d.Name]; exists {
			return nil, invalidf("duplicate task name: %q", d.Name)
		}
		def := d.Clone()
		node := &TaskNode{Name: def.Name, Def: def, DefinitionHash: computeTaskDefHash(def)}
		nodesByName[def.Name] = node
		nodes = append(nodes, node)
	}
	if len(defErrs) > 0 {
		return nil, errors.Join(defErrs...)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for i, n := range nodes {
		n.canonicalIndex = i
	}

	var edges []edgeIndex
	for _, n := range nodes {
		for _, dep := range n.Def.DependsOn {
			from, ok := nodesByName[dep]
			if !ok {
				return nil, invalidf("task %q depends on unknown task %q", n.Name, dep)
			}
			if from == n {
				return nil, cycleError([]string{n.Name, n.Name})
			}
			edges = append(edges, edgeIndex{from: from.canonicalIndex, to: n.canonicalIndex})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	indeg := make([]int, len(nodes))
	for _, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
		indeg[e.to]++
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
	}
	for i := range incoming {
		sort.Ints(incoming[i])
	}

	g := &TaskGraph{
		nodesByName: nodesByName,
		nodes:       nodes,
		edges:       edges,
		outgoing:    outgoing,
		incoming:    incoming,
		indeg:       indeg,
	}

	g.order = g.executionOrder()
	if len(g.order) != len(nodes) {
		return nil, cycleError(g.cyclePath(g.order))
	}

	g.depth = g.computeDepth()
	g.hash = g.computeGraphHash()
	return g, nil
}

// Hash returns the stable identity for this graph.
func (g *TaskGraph) Hash() GraphHash { return g.hash }

// Len returns the number of tasks.
func (g *TaskGraph) Len() int { return len(g.nodes) }

// Node returns a node by name.
func (g *TaskGraph) Node(name string) (*TaskNode, bool) {
	n, ok := g.nodesByName[name]
	return n, ok
}

// Has reports whether a task named name exists.
func (g *TaskGraph) Has(name string) bool {
	_, ok := g.nodesByName[name]
	return ok
}

// Edges returns the dependency edges as (From, To) name pairs in canonical order.
func (g *TaskGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.nodes[e.from].Name, To: g.nodes[e.to].Name})
	}
	return out
}

// Dependencies returns the direct dependencies of name, sorted.
func (g *TaskGraph) Dependencies(name string) []string {
	n, ok := g.nodesByName[name]
	if !ok {
		return nil
	}
	return g.names(g.incoming[n.canonicalIndex])
}

// Dependents returns the tasks that directly depend on name, sorted.
func (g *TaskGraph) Dependents(name string) []string {
	n, ok := g.nodesByName[name]
	if !ok {
		return nil
	}
	return g.names(g.outgoing[n.canonicalIndex])
}

func (g *TaskGraph) names(idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.nodes[i].Name)
	}
	return out
}

// Depth returns the topological depth of the given node name.
//
// Depth is defined as the length of the longest path from any root to the node.
func (g *TaskGraph) Depth(name string) (int, bool) {
	n, ok := g.nodesByName[name]
	if !ok {
		return 0, false
	}
	return g.depth[n.canonicalIndex], true
}

func (g *TaskGraph) computeDepth() []int {
	depth := make([]int, len(g.nodes))
	for _, u := range g.order {
		maxParent := 0
		for _, p := range g.incoming[u] {
			if cand := depth[p] + 1; cand > maxParent {
				maxParent = cand
			}
		}
		depth[u] = maxParent
	}
	return depth
}

// TopologicalOrder returns the execution order of task names. Among tasks
// whose dependencies are all placed, the lexicographically smallest name goes
// first.
//
// Since the graph is validated on construction, this method must not fail.
func (g *TaskGraph) TopologicalOrder() []string {
	names := make([]string, 0, len(g.order))
	for _, idx := range g.order {
		names = append(names, g.nodes[idx].Name)
	}
	return names
}

func (g *TaskGraph) computeGraphHash() GraphHash {
	w := fieldWriter{h: sha256.New()}

	w.writeInt(len(g.nodes))
	for _, n := range g.nodes {
		w.writeString(string(n.DefinitionHash))
	}

	w.writeInt(len(g.edges))
	for _, e := range g.edges {
		w.writeString(g.nodes[e.from].Name)
		w.writeString(g.nodes[e.to].Name)
	}

	return GraphHash(hex.EncodeToString(w.h.Sum(nil)))
}
