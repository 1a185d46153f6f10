package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pipeweaver/internal/console"
	"pipeweaver/internal/dag"
	"pipeweaver/internal/metrics"
	"pipeweaver/internal/pipeline"
	"pipeweaver/internal/state"
	"pipeweaver/internal/telemetry"
)

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return invalidInvocationf("%s takes no arguments, got %q", cmd.Name(), args)
	}
	return nil
}

func newRunCommand(a *app) *cobra.Command {
	var (
		upTo  string
		force []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline, reusing results whose inputs are unchanged",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			shutdown, err := telemetry.Init(ctx, a.cfg.OTELEndpoint, a.cfg.ServiceName, a.version, a.cfg.OTELInsecure)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					a.logger.Warn("telemetry shutdown", "error", err)
				}
			}()

			reg := prometheus.NewRegistry()
			p, err := a.newPipeline(
				pipeline.WithMetrics(metrics.New(reg)),
				pipeline.WithObserver(console.New(cmd.OutOrStdout(), a.noColor)),
			)
			if err != nil {
				return err
			}

			opts := []pipeline.RunOption{pipeline.WithForceRerun(force...)}
			if upTo != "" {
				opts = append(opts, pipeline.WithUpTo(upTo))
			}
			report, runErr := p.Run(ctx, opts...)

			if a.cfg.MetricsFile != "" {
				if err := metrics.WriteTextfile(a.cfg.MetricsFile, reg); err != nil {
					a.logger.Warn("write metrics file", "path", a.cfg.MetricsFile, "error", err)
				}
			}
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d reused, %d executed, %d failed, %d skipped\n",
				report.RunID,
				report.Count(dag.TaskReused),
				report.Count(dag.TaskExecuted),
				report.Count(dag.TaskFailed),
				report.Count(dag.TaskSkipped),
			)
			if !report.Succeeded() {
				return &ExitError{Code: ExitGraphFailure, Err: fmt.Errorf("%d task(s) failed, %d skipped",
					report.Count(dag.TaskFailed), report.Count(dag.TaskSkipped))}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&upTo, "up-to", "", "stop after this task")
	cmd.Flags().StringSliceVar(&force, "force", nil, "tasks to execute even when reusable (comma separated, repeatable)")
	return cmd
}

func newListTasksCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-tasks",
		Short: "List tasks in execution order with their last recorded status",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.newPipeline()
			if err != nil {
				return err
			}
			store, err := state.NewStore(a.cfg.StorePath, a.logger)
			if err != nil {
				return err
			}
			previous, err := store.Load()
			if err != nil {
				return err
			}

			printer := console.New(cmd.OutOrStdout(), a.noColor)
			for _, name := range p.Graph().TopologicalOrder() {
				r, ok := previous.TaskResults[name]
				printer.StoredStatus(name, r, ok)
			}
			return nil
		},
	}
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the pipeline definition and print the execution order",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.newPipeline()
			if err != nil {
				return err
			}
			g := p.Graph()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pipeline is valid: %d tasks, %d edges, graph %s\n", g.Len(), len(g.Edges()), g.Hash())
			for i, name := range g.TopologicalOrder() {
				depth, _ := g.Depth(name)
				fmt.Fprintf(out, "%3d. %s (depth %d)", i+1, name, depth)
				if next := g.Dependents(name); len(next) > 0 {
					fmt.Fprintf(out, " -> %s", strings.Join(next, ", "))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newRunsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, oldest first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := state.NewRunLog(a.cfg.RunsDir, a.logger)
			if err != nil {
				return err
			}
			records, err := runs.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range records {
				fmt.Fprintf(out, "%s  %s  %-9s  %d tasks\n",
					rec.StartTime.Format(time.RFC3339), rec.RunID, rec.Status, len(rec.Tasks))
			}
			return nil
		},
	}
}

// newPipeline loads the tasks and builds a pipeline over the configured
// store.
func (a *app) newPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	tasks, err := a.loadTasks()
	if err != nil {
		return nil, err
	}
	store, err := state.NewStore(a.cfg.StorePath, a.logger)
	if err != nil {
		return nil, err
	}
	runs, err := state.NewRunLog(a.cfg.RunsDir, a.logger)
	if err != nil {
		return nil, err
	}
	base := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithRunLog(runs),
		pipeline.WithLockTimeout(a.cfg.LockTimeout),
	}
	return pipeline.New(store, tasks, append(base, opts...)...)
}
