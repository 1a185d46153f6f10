package pipeline

import "pipeweaver/internal/core"

// Reason explains a reuse decision. The values appear in logs, trace events
// and run records.
type Reason string

const (
	ReasonReusable         Reason = "Reusable"
	ReasonImpure           Reason = "Impure"
	ReasonForcedRerun      Reason = "ForcedRerun"
	ReasonNoPreviousInputs Reason = "NoPreviousInputs"
	ReasonPreviousFailed   Reason = "PreviousFailed"
	ReasonInputsChanged    Reason = "InputsChanged"
)

// Decision is the outcome of the reuse check for one task.
type Decision struct {
	Reuse  bool
	Reason Reason
}

// decideReuse reports whether the previous result of def can stand in for an
// execution given the task's current dependency-scoped inputs.
func decideReuse(def core.TaskDef, forced bool, previous, inputs *core.PipelineResult) Decision {
	switch {
	case !def.Pure:
		return Decision{Reason: ReasonImpure}
	case forced:
		return Decision{Reason: ReasonForcedRerun}
	}

	prevInputs, ok := previous.TaskInputs[def.Name]
	if !ok || prevInputs == nil {
		return Decision{Reason: ReasonNoPreviousInputs}
	}
	prevResult, ok := previous.TaskResults[def.Name]
	if !ok {
		return Decision{Reason: ReasonNoPreviousInputs}
	}
	if !prevResult.Succeeded() {
		return Decision{Reason: ReasonPreviousFailed}
	}
	if !inputs.Equal(prevInputs) {
		return Decision{Reason: ReasonInputsChanged}
	}
	return Decision{Reuse: true, Reason: ReasonReusable}
}
