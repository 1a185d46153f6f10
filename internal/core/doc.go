// Package core defines the data model shared by the pipeline packages.
//
// # Core Types
//
// Value: a tagged variant over null, string, int, float, bool, list and map.
// Artifact: a file produced by a task, identified by location, creation time
// and an optional content hash.
// TaskDef: the static description of a task (name, dependencies, purity and
// parameter bindings).
// TaskResult: the values, artifacts and status produced by one execution.
// PipelineResult: every attempted task's result plus the dependency-scoped
// inputs it ran with.
//
// All types serialize deterministically. The persisted state file is the
// JSON encoding of a PipelineResult.
package core
