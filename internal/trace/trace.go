package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ExecutionTrace is the canonical record of the decisions taken during one
// pipeline run.
//
// It captures logical decisions only (reuse, execution, failure, skip) and
// never timestamps, durations or error strings, so two runs that took the
// same decisions over the same graph produce the same bytes.
type ExecutionTrace struct {
	GraphHash string
	Events    []TraceEvent
}

// TraceEventKind is the stable discriminator for TraceEvent.
// The string values are part of the trace's canonical bytes; do not rename.
type TraceEventKind string

const (
	EventTaskReused   TraceEventKind = "TaskReused"
	EventTaskExecuted TraceEventKind = "TaskExecuted"
	EventTaskFailed   TraceEventKind = "TaskFailed"
	EventTaskSkipped  TraceEventKind = "TaskSkipped"
)

// TraceEvent is a single decision about one task.
type TraceEvent struct {
	Kind TraceEventKind

	// TaskID is the task the event refers to.
	TaskID string

	// Reason is a stable reason code, e.g. "InputsChanged" or "UpstreamFailed".
	Reason string

	// CauseTaskID records the upstream task that caused a skip.
	CauseTaskID string

	// Artifacts lists the names of the artifacts the task produced or reused.
	Artifacts []string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i, e := range t.Events {
		if kindOrder(e.Kind) == 0 {
			return fmt.Errorf("events[%d].kind %q is unknown", i, e.Kind)
		}
		if e.TaskID == "" {
			return fmt.Errorf("events[%d].taskId is required", i)
		}
		if e.Kind == EventTaskSkipped && e.CauseTaskID == "" {
			return fmt.Errorf("events[%d].causeTaskId is required for %s", i, e.Kind)
		}
		for j, a := range e.Artifacts {
			if a == "" {
				return fmt.Errorf("events[%d].artifacts[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize normalizes and sorts the trace into its canonical form.
//
// Canonicalization rules:
//   - Artifacts are copied and sorted; empty slices become nil.
//   - Events are stably sorted by (taskId, kind, reason, causeTaskId, artifacts).
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Artifacts) == 0 {
			t.Events[i].Artifacts = nil
			continue
		}
		art := append([]string(nil), t.Events[i].Artifacts...)
		sort.Strings(art)
		t.Events[i].Artifacts = art
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		if a.CauseTaskID != b.CauseTaskID {
			return a.CauseTaskID < b.CauseTaskID
		}
		return lessStrings(a.Artifacts, b.Artifacts)
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventTaskReused:
		return 10
	case EventTaskExecuted:
		return 20
	case EventTaskFailed:
		return 30
	case EventTaskSkipped:
		return 40
	default:
		return 0
	}
}

func lessStrings(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slices.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{GraphHash: t.GraphHash, Events: append([]TraceEvent(nil), t.Events...)}
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

// Hash returns the sha256 hex digest of the canonical JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order. It does not sort; use CanonicalJSON for the
// canonical form.
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.GraphHash == "" {
		return nil, errors.New("graphHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"graphHash":`)
	writeString(&buf, t.GraphHash)
	buf.WriteString(`,"events":[`)
	for i, e := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	writeString(&buf, string(e.Kind))

	optional := []struct{ key, val string }{
		{"taskId", e.TaskID},
		{"reason", e.Reason},
		{"causeTaskId", e.CauseTaskID},
	}
	for _, f := range optional {
		if f.val == "" {
			continue
		}
		buf.WriteString(`,"` + f.key + `":`)
		writeString(&buf, f.val)
	}

	if len(e.Artifacts) > 0 {
		artifacts := append([]string(nil), e.Artifacts...)
		sort.Strings(artifacts)
		buf.WriteString(`,"artifacts":[`)
		for i, a := range artifacts {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(&buf, a)
		}
		buf.WriteByte(']')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
