// Package console prints one status line per task.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"pipeweaver/internal/core"
	"pipeweaver/internal/dag"
)

const (
	MarkerReused  = "—"
	MarkerSuccess = "✔"
	MarkerFailure = "✘"
	MarkerSkipped = "·"
	markerNever   = " "
)

// Printer writes task status lines to an output stream.
type Printer struct {
	mu  sync.Mutex
	out io.Writer

	reused  *color.Color
	success *color.Color
	failure *color.Color
	skipped *color.Color
}

// New returns a printer writing to w. Colour is disabled when noColor is set,
// independently of the terminal detection done by fatih/color.
func New(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     w,
		reused:  color.New(color.FgYellow),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		skipped: color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.reused, p.success, p.failure, p.skipped} {
			c.DisableColor()
		}
	}
	return p
}

// TaskFinished prints the marker for a task's terminal state. detail, when
// not empty, is appended after the name.
func (p *Printer) TaskFinished(name string, state dag.TaskState, detail string) {
	var marker string
	switch state {
	case dag.TaskReused:
		marker = p.reused.Sprint(MarkerReused)
	case dag.TaskExecuted:
		marker = p.success.Sprint(MarkerSuccess)
	case dag.TaskFailed:
		marker = p.failure.Sprint(MarkerFailure)
	case dag.TaskSkipped:
		marker = p.skipped.Sprint(MarkerSkipped)
	default:
		marker = markerNever
	}
	p.line(marker, name, detail)
}

// StoredStatus prints a task with the marker of its last stored result. ok
// is false when the task has never been attempted.
func (p *Printer) StoredStatus(name string, result core.TaskResult, ok bool) {
	marker := markerNever
	switch {
	case !ok:
	case result.Succeeded():
		marker = p.success.Sprint(MarkerSuccess)
	default:
		marker = p.failure.Sprint(MarkerFailure)
	}
	p.line(marker, name, "")
}

func (p *Printer) line(marker, name, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if detail == "" {
		fmt.Fprintf(p.out, "%s %s\n", marker, name)
		return
	}
	fmt.Fprintf(p.out, "%s %s: %s\n", marker, name, detail)
}
