// Package dag builds the dependency graph of a pipeline.
//
// It is split into:
//   - Immutable graph definition (TaskGraph): task definitions, dependency
//     edges and a stable GraphHash
//   - Mutable per-run state (ExecutionState): the TaskState of every task
//     during one run
//
// Ordering is Kahn's algorithm with ties broken by task name, so the order
// depends only on the set of definitions and never on registration order.
package dag
