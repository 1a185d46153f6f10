package dag

import "pipeweaver/internal/core"

// GraphHash is the deterministic identity of a TaskGraph.
//
// It is computed from task definitions and dependency structure and is
// invariant to the order in which tasks were registered.
type GraphHash string

// TaskDefHash is the deterministic identity of one task definition.
type TaskDefHash string

// Edge represents a dependency relation: To depends on From.
type Edge struct {
	From string
	To   string
}

// TaskNode is an immutable node in the TaskGraph.
type TaskNode struct {
	Name           string
	Def            core.TaskDef
	DefinitionHash TaskDefHash
	canonicalIndex int
}

// CanonicalIndex returns the node's position in name order.
func (n *TaskNode) CanonicalIndex() int { return n.canonicalIndex }

func (h GraphHash) String() string { return string(h) }

func (h TaskDefHash) String() string { return string(h) }
