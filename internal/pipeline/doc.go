// Package pipeline executes a task graph against a persistent state store.
//
// A run visits tasks one at a time in lexicographic topological order. Each
// task is skipped (a direct dependency failed or was skipped), reused (pure,
// not forced, previously successful, and invoked with identical inputs), or
// executed. After every reused, executed or failed task the previous state
// overlaid with the run's results is written back to the store, so an
// interrupted run never loses completed work.
package pipeline
