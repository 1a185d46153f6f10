package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"pipeweaver/internal/core"
	"pipeweaver/internal/dag"
	"pipeweaver/internal/metrics"
	"pipeweaver/internal/state"
	"pipeweaver/internal/telemetry"
	"pipeweaver/internal/trace"
)

// Observer is notified once per task when it reaches a terminal state.
type Observer interface {
	TaskFinished(name string, st dag.TaskState, detail string)
}

// Pipeline runs a fixed set of tasks against a persistent store.
type Pipeline struct {
	graph *dag.TaskGraph
	tasks map[string]*core.Task
	store *state.Store

	runs        *state.RunLog
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      oteltrace.Tracer
	sink        trace.Sink
	observer    Observer
	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

func WithTracer(t oteltrace.Tracer) Option { return func(p *Pipeline) { p.tracer = t } }

// WithTraceSink receives the decision events of every run.
func WithTraceSink(s trace.Sink) Option { return func(p *Pipeline) { p.sink = s } }

func WithObserver(o Observer) Option { return func(p *Pipeline) { p.observer = o } }

// WithRunLog records one RunRecord per run.
func WithRunLog(l *state.RunLog) Option { return func(p *Pipeline) { p.runs = l } }

// WithLockTimeout bounds how long Run waits for the store lock.
func WithLockTimeout(d time.Duration) Option { return func(p *Pipeline) { p.lockTimeout = d } }

// New builds the dependency graph of tasks. Definition errors, unknown
// dependencies and cycles are reported here, before anything runs.
func New(store *state.Store, tasks []*core.Task, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("nil store")
	}
	defs := make([]core.TaskDef, 0, len(tasks))
	byName := make(map[string]*core.Task, len(tasks))
	for _, t := range tasks {
		if t == nil {
			return nil, fmt.Errorf("%w: nil task", dag.ErrInvalidGraph)
		}
		defs = append(defs, t.Def())
		byName[t.Name()] = t
	}
	g, err := dag.NewTaskGraph(defs)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		graph:       g,
		tasks:       byName,
		store:       store,
		lockTimeout: 5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.tracer == nil {
		p.tracer = telemetry.Tracer()
	}
	return p, nil
}

// Graph returns the pipeline's dependency graph.
func (p *Pipeline) Graph() *dag.TaskGraph { return p.graph }

// RunOptions selects which part of the pipeline runs.
type RunOptions struct {
	// UpTo stops the run after this task, inclusive. Empty runs everything.
	UpTo string

	// ForceRerun lists tasks that execute even when reusable.
	ForceRerun []string
}

type RunOption func(*RunOptions)

func WithUpTo(task string) RunOption { return func(o *RunOptions) { o.UpTo = task } }

func WithForceRerun(tasks ...string) RunOption {
	return func(o *RunOptions) { o.ForceRerun = append(o.ForceRerun, tasks...) }
}

// Plan returns the tasks a run with opts would consider, in order.
func (p *Pipeline) Plan(opts RunOptions) ([]string, error) {
	var unknown []string
	for _, name := range opts.ForceRerun {
		if !p.graph.Has(name) {
			unknown = append(unknown, name)
		}
	}
	if opts.UpTo != "" && !p.graph.Has(opts.UpTo) {
		unknown = append(unknown, opts.UpTo)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, strings.Join(unknown, ", "))
	}

	order := p.graph.TopologicalOrder()
	if opts.UpTo != "" {
		order = order[:slices.Index(order, opts.UpTo)+1]
	}
	return order, nil
}

// Run executes the pipeline sequentially in topological order.
//
// The store is locked for the whole run and the merged state is checkpointed
// after every task that is reused, executed or failed. Task errors are
// recorded as failures; the returned error is non-nil only when the run was
// aborted, in which case the report covers the tasks reached so far.
func (p *Pipeline) Run(ctx context.Context, opts ...RunOption) (*RunReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var ro RunOptions
	for _, opt := range opts {
		opt(&ro)
	}

	r := &run{
		p:        p,
		opts:     ro,
		forced:   make(map[string]bool, len(ro.ForceRerun)),
		states:   dag.NewExecutionState(p.graph),
		current:  core.NewPipelineResult(),
		recorder: trace.NewRecorder(),
		record: state.RunRecord{
			RunID:      state.NewRunID(),
			GraphHash:  p.graph.Hash().String(),
			StartTime:  p.now().UTC(),
			Status:     state.RunRunning,
			UpTo:       ro.UpTo,
			ForceRerun: append([]string{}, ro.ForceRerun...),
		},
	}
	for _, name := range ro.ForceRerun {
		r.forced[name] = true
	}
	r.logger = p.logger.With("run_id", r.record.RunID)

	ctx, span := p.tracer.Start(ctx, "pipeline.run", oteltrace.WithAttributes(
		attribute.String("pipeweaver.run_id", r.record.RunID),
		attribute.String("pipeweaver.graph_hash", r.record.GraphHash),
		attribute.String("pipeweaver.up_to", ro.UpTo),
	))
	defer span.End()

	err := r.execute(ctx)
	report := r.finish(err)

	span.SetAttributes(attribute.String("pipeweaver.status", string(r.record.Status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return report, err
}

type run struct {
	p      *Pipeline
	opts   RunOptions
	forced map[string]bool
	logger *slog.Logger

	order    []string
	states   dag.ExecutionState
	previous *core.PipelineResult
	current  *core.PipelineResult
	outcomes []state.TaskOutcome
	recorder *trace.Recorder
	record   state.RunRecord
}

func (r *run) execute(ctx context.Context) error {
	order, err := r.p.Plan(r.opts)
	if err != nil {
		return err
	}
	r.order = order

	lock, err := r.p.store.Lock(ctx, r.p.lockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("release store lock", "error", err)
		}
	}()

	previous, err := r.p.store.Load()
	if err != nil {
		return err
	}
	r.previous = previous
	r.saveRecord()

	r.logger.Info("run started", "tasks", len(r.order), "up_to", r.opts.UpTo, "force", r.opts.ForceRerun)
	for _, name := range r.order {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted before %s: %w", name, err)
		}
		if err := r.step(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// step drives one task from PENDING to a terminal state.
func (r *run) step(ctx context.Context, name string) error {
	start := r.p.now()

	if cause, blocked := dag.BlockingDependency(r.p.graph, r.states, name); blocked {
		reason := "UpstreamFailed"
		if r.states[cause] == dag.TaskSkipped {
			reason = "UpstreamSkipped"
		}
		if err := dag.Transition(r.states, name, dag.TaskPending, dag.TaskSkipped); err != nil {
			return err
		}
		r.logger.Debug("task skipped", "task", name, "cause", cause, "reason", reason)
		r.finishTask(name, dag.TaskSkipped, reason, cause, "", nil, r.p.now().Sub(start))
		return nil
	}

	node, _ := r.p.graph.Node(name)
	scoped := scopedState(r.p.graph, name, r.current)
	args, err := bindArgs(node.Def, scoped)
	if err != nil {
		return err
	}

	decision := decideReuse(node.Def, r.forced[name], r.previous, scoped)
	r.logger.Debug("reuse decision", "task", name, "reuse", decision.Reuse, "reason", decision.Reason)

	var (
		result core.TaskResult
		to     dag.TaskState
		reason = string(decision.Reason)
	)
	if decision.Reuse {
		result = r.previous.TaskResults[name].Clone()
		to = dag.TaskReused
	} else {
		var failure string
		result, failure = r.invoke(ctx, r.p.tasks[name], args)
		to = dag.TaskExecuted
		if !result.Succeeded() {
			to = dag.TaskFailed
			reason = failure
		}
	}
	if err := dag.Transition(r.states, name, dag.TaskPending, to); err != nil {
		return err
	}

	r.current.TaskResults[name] = result
	r.current.TaskInputs[name] = scoped
	cerr := r.checkpoint(name)

	r.finishTask(name, to, reason, "", result.Error, sortedArtifactNames(result), r.p.now().Sub(start))
	return cerr
}

// invoke runs the task body. Errors, panics and malformed output all become
// a failure result; the second return value is the trace reason for a
// failure.
func (r *run) invoke(ctx context.Context, task *core.Task, args core.Args) (core.TaskResult, string) {
	ctx, span := r.p.tracer.Start(ctx, "pipeline.task", oteltrace.WithAttributes(
		attribute.String("pipeweaver.task", task.Name()),
	))
	defer span.End()

	raw, err := task.Invoke(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("task raised an error", "task", task.Name(), "error", err)
		return core.NewFailure(err), "TaskError"
	}

	result, err := core.WrapOutput(task.Name(), raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("task returned an invalid result", "task", task.Name(), "error", err)
		return core.NewFailure(err), "InvalidResult"
	}

	switch result.Status {
	case "":
		result.Status = core.StatusSuccess
	case core.StatusSuccess:
	case core.StatusFailure:
		if result.Error == "" {
			result.Error = "task reported failure"
		}
		span.SetStatus(codes.Error, result.Error)
		return result, "ReportedFailure"
	default:
		err := &core.InvalidTaskResultError{Task: task.Name(), Cause: fmt.Errorf("unknown status %q", result.Status)}
		span.SetStatus(codes.Error, err.Error())
		return core.NewFailure(err), "InvalidResult"
	}
	// A success carries no error message.
	result.Error = ""
	return result, ""
}

// checkpoint persists the previous state overlaid with this run's results.
func (r *run) checkpoint(task string) error {
	err := r.p.store.Save(r.previous.Merge(r.current))
	r.p.metrics.ObserveCheckpoint(err)
	if err == nil {
		return nil
	}
	var invalid *core.InvalidTaskResultError
	if errors.As(err, &invalid) && invalid.Task == "" {
		invalid.Task = task
	}
	return fmt.Errorf("checkpoint after %s: %w", task, err)
}

func (r *run) finishTask(name string, st dag.TaskState, reason, cause, errMsg string, artifacts []string, d time.Duration) {
	r.outcomes = append(r.outcomes, state.TaskOutcome{
		Task:       name,
		State:      string(st),
		Reason:     reason,
		Cause:      cause,
		Error:      errMsg,
		DurationMS: d.Milliseconds(),
	})

	ev := trace.TraceEvent{TaskID: name, Reason: reason, CauseTaskID: cause, Artifacts: artifacts}
	switch st {
	case dag.TaskReused:
		ev.Kind = trace.EventTaskReused
	case dag.TaskExecuted:
		ev.Kind = trace.EventTaskExecuted
	case dag.TaskFailed:
		ev.Kind = trace.EventTaskFailed
	case dag.TaskSkipped:
		ev.Kind = trace.EventTaskSkipped
	}
	r.recorder.Record(ev)
	trace.SafeRecord(r.p.sink, ev)

	r.p.metrics.ObserveTask(strings.ToLower(string(st)), d)

	detail := errMsg
	if st == dag.TaskSkipped {
		detail = fmt.Sprintf("upstream %s %s", cause, strings.ToLower(string(r.states[cause])))
	}
	if r.p.observer != nil {
		r.p.observer.TaskFinished(name, st, detail)
	}
	if st == dag.TaskFailed {
		r.logger.Warn("task failed", "task", name, "reason", reason, "error", errMsg)
	}
}

func (r *run) finish(runErr error) *RunReport {
	end := r.p.now().UTC()
	if end.Before(r.record.StartTime) {
		end = r.record.StartTime
	}
	r.record.EndTime = &end
	r.record.Tasks = r.outcomes

	tr := r.recorder.Trace(r.record.GraphHash)
	traceHash, err := tr.Hash()
	if err != nil {
		r.logger.Warn("hash execution trace", "error", err)
	}
	r.record.TraceHash = traceHash

	report := &RunReport{
		RunID:     r.record.RunID,
		GraphHash: r.p.graph.Hash(),
		Order:     r.order,
		States:    r.states.Clone(),
		Result:    r.current.Clone(),
		Outcomes:  append([]state.TaskOutcome(nil), r.outcomes...),
		TraceHash: traceHash,
	}

	switch {
	case runErr != nil:
		r.record.Status = state.RunAborted
		class, code := Classify(runErr)
		f := &state.Failure{FailureClass: class, ErrorCode: code, ErrorMessage: runErr.Error()}
		if n := len(r.outcomes); n > 0 && class != state.FailureClassConfiguration {
			f.Task = &r.outcomes[n-1].Task
		}
		var arg *ArgumentError
		if errors.As(runErr, &arg) {
			f.Task = &arg.Task
		}
		r.record.Failure = f
		r.logger.Error("run aborted", "error", runErr, "failure_class", class, "error_code", code)
	case report.Succeeded():
		r.record.Status = state.RunSucceeded
	default:
		r.record.Status = state.RunFailed
	}

	r.p.metrics.ObserveRun(string(r.record.Status))
	r.saveRecord()
	r.logger.Info("run finished",
		"status", r.record.Status,
		"reused", report.Count(dag.TaskReused),
		"executed", report.Count(dag.TaskExecuted),
		"failed", report.Count(dag.TaskFailed),
		"skipped", report.Count(dag.TaskSkipped),
		"trace_hash", traceHash,
	)
	return report
}

func (r *run) saveRecord() {
	if r.p.runs == nil {
		return
	}
	if err := r.p.runs.Save(r.record); err != nil {
		r.logger.Warn("save run record", "error", err)
	}
}

func sortedArtifactNames(result core.TaskResult) []string {
	if len(result.Artifacts) == 0 {
		return nil
	}
	names := make([]string, 0, len(result.Artifacts))
	for name := range result.Artifacts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
