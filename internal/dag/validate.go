package dag

import (
	"container/heap"
	"slices"
)

// readyQueue holds tasks whose dependencies have all been placed. Canonical
// indices follow name order, so popping the minimum yields the smallest name.
type readyQueue []int

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(int)) }
func (q *readyQueue) Pop() any {
	old := *q
	x := old[len(old)-1]
	*q = old[:len(old)-1]
	return x
}

// executionOrder places each task after all of its dependencies, taking the
// smallest ready name first. Tasks on a cycle, or downstream of one, are
// never ready and are left out.
func (g *TaskGraph) executionOrder() []int {
	waiting := slices.Clone(g.indeg)
	ready := &readyQueue{}
	for i, n := range waiting {
		if n == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]int, 0, len(g.nodes))
	for ready.Len() > 0 {
		task := heap.Pop(ready).(int)
		order = append(order, task)
		for _, dependent := range g.outgoing[task] {
			waiting[dependent]--
			if waiting[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}
	return order
}

// cyclePath names one dependency cycle among the tasks missing from order.
//
// Every missing task has at least one missing dependency, so walking from the
// smallest missing name through the smallest missing dependency must revisit
// a task. The loop found that way is returned in dependency order (each task
// depends on the one before it) and rotated to start at its smallest name.
func (g *TaskGraph) cyclePath(order []int) []string {
	placed := make([]bool, len(g.nodes))
	for _, i := range order {
		placed[i] = true
	}
	start := slices.Index(placed, false)
	if start < 0 {
		return nil
	}

	seen := map[int]int{}
	var walk []int
	for task := start; ; {
		if at, ok := seen[task]; ok {
			walk = walk[at:]
			break
		}
		seen[task] = len(walk)
		walk = append(walk, task)
		for _, dep := range g.incoming[task] {
			if !placed[dep] {
				task = dep
				break
			}
		}
	}

	slices.Reverse(walk)
	first := slices.Index(walk, slices.Min(walk))
	loop := slices.Concat(walk[first:], walk[:first])

	path := make([]string, 0, len(loop)+1)
	for _, i := range loop {
		path = append(path, g.nodes[i].Name)
	}
	return append(path, path[0])
}
