// Package cli implements the pipeweaver command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pipeweaver/internal/config"
	"pipeweaver/internal/core"
	"pipeweaver/internal/definition"
	"pipeweaver/internal/logging"
)

// Option configures the root command.
type Option func(*app)

// WithTasks registers tasks programmatically. When set, no pipeline
// definition file is read.
func WithTasks(tasks ...*core.Task) Option {
	return func(a *app) { a.tasks = append(a.tasks, tasks...) }
}

func WithVersion(v string) Option { return func(a *app) { a.version = v } }

// WithOutput redirects command output and error messages.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *app) { a.out, a.errOut = out, errOut }
}

type app struct {
	tasks   []*core.Task
	version string
	out     io.Writer
	errOut  io.Writer

	configPath string
	pipeline   string
	storePath  string
	logFile    string
	verbose    bool
	noColor    bool

	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
}

// Run executes the command line args and returns the process exit code.
func Run(ctx context.Context, args []string, opts ...Option) int {
	a := newApp(opts)
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return ExitCode(err)
}

// NewRootCommand builds the pipeweaver command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	return newRootCommand(newApp(opts))
}

func newApp(opts []Option) *app {
	a := &app{version: "dev", out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeweaver",
		Short:         "Run dependency-ordered task pipelines, reusing unchanged results",
		Version:       a.version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return invalidInvocationf("unknown command %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return invalidInvocationf("a command is required (see --help)")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultFile+" if present)")
	f.StringVar(&a.pipeline, "pipeline", "", "pipeline definition file")
	f.StringVar(&a.storePath, "store", "", "pipeline state file")
	f.StringVar(&a.logFile, "log-file", "", "write logs to this file instead of stderr")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	f.BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		newRunCommand(a),
		newListTasksCommand(a),
		newValidateCommand(a),
		newRunsCommand(a),
	)
	return root
}

// setup resolves the configuration and builds the logger. Flags override the
// environment and the config file.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Root() == cmd {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return configError(err)
	}
	flags := cmd.Flags()
	if flags.Changed("pipeline") {
		cfg.PipelineFile = a.pipeline
	}
	if flags.Changed("store") {
		cfg.StorePath = a.storePath
	}
	if flags.Changed("log-file") {
		cfg.LogFile = a.logFile
	}
	if flags.Changed("verbose") {
		cfg.Verbose = a.verbose
	}

	logger, closer, err := logging.New(cfg)
	if err != nil {
		return configError(err)
	}
	a.cfg, a.logger, a.closer = cfg, logger, closer
	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// loadTasks returns the registered tasks, or builds them from the pipeline
// definition file.
func (a *app) loadTasks() ([]*core.Task, error) {
	if len(a.tasks) > 0 {
		return a.tasks, nil
	}
	if strings.TrimSpace(a.cfg.PipelineFile) == "" {
		return nil, configError(fmt.Errorf("no pipeline definition configured"))
	}
	f, err := definition.Load(a.cfg.PipelineFile)
	if err != nil {
		return nil, configError(err)
	}
	tasks, err := f.BuildTasks()
	if err != nil {
		return nil, configError(err)
	}
	a.logger.Debug("loaded pipeline definition", "path", a.cfg.PipelineFile, "tasks", len(tasks))
	return tasks, nil
}
