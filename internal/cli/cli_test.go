package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeweaver/internal/core"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args []string, opts ...Option) result {
	t.Helper()
	var out, errOut bytes.Buffer
	opts = append(opts, WithOutput(&out, &errOut))
	code := Run(context.Background(), append([]string{"--no-color"}, args...), opts...)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// workspace isolates config discovery, the store and the runs directory in
// a fresh directory.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func valueTask(name string, v any, opts ...core.TaskOption) *core.Task {
	return core.MustTask(name, func(context.Context, core.Args) (any, error) {
		return map[string]any{"values": map[string]any{"v": v}}, nil
	}, opts...)
}

func TestRun_SucceedsThenReuses(t *testing.T) {
	workspace(t)
	tasks := WithTasks(valueTask("a", 1), valueTask("b", 2, core.DependsOn("a")))

	first := runCLI(t, []string{"run"}, tasks)
	require.Equal(t, ExitSuccess, first.code, first.stderr)
	assert.Contains(t, first.stdout, "✔ a\n✔ b\n")
	assert.Contains(t, first.stdout, "0 reused, 2 executed, 0 failed, 0 skipped")

	second := runCLI(t, []string{"run"}, tasks)
	require.Equal(t, ExitSuccess, second.code, second.stderr)
	assert.Contains(t, second.stdout, "— a\n— b\n")

	forced := runCLI(t, []string{"run", "--force", "b"}, tasks)
	require.Equal(t, ExitSuccess, forced.code, forced.stderr)
	assert.Contains(t, forced.stdout, "— a\n✔ b\n")

	assert.FileExists(t, filepath.Join(".pipeweaver", "state.json"))
}

func TestRun_FailedTaskExitsWithGraphFailure(t *testing.T) {
	workspace(t)
	tasks := WithTasks(
		core.MustTask("a", func(context.Context, core.Args) (any, error) { return nil, errors.New("broken") }),
		valueTask("b", 1, core.DependsOn("a")),
	)

	res := runCLI(t, []string{"run"}, tasks)
	assert.Equal(t, ExitGraphFailure, res.code)
	assert.Contains(t, res.stdout, "✘ a: broken\n· b: upstream a failed\n")
	assert.Contains(t, res.stderr, "1 task(s) failed, 1 skipped")
}

func TestRun_UpTo(t *testing.T) {
	workspace(t)
	tasks := WithTasks(valueTask("a", 1), valueTask("b", 2, core.DependsOn("a")))

	res := runCLI(t, []string{"run", "--up-to", "a"}, tasks)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "✔ a\n")
	assert.NotContains(t, res.stdout, " b\n")
}

func TestRun_ExitCodes(t *testing.T) {
	tasks := WithTasks(valueTask("a", 1))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"run", "--bogus"}, ExitInvalidInvocation},
		{"unknown command", []string{"frobnicate"}, ExitInvalidInvocation},
		{"no command", []string{}, ExitInvalidInvocation},
		{"stray argument", []string{"run", "extra"}, ExitInvalidInvocation},
		{"unknown up-to task", []string{"run", "--up-to", "zzz"}, ExitConfigError},
		{"unknown forced task", []string{"run", "--force", "zzz"}, ExitConfigError},
		{"missing config file", []string{"--config", "nope.yaml", "run"}, ExitConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)
			res := runCLI(t, tt.args, tasks)
			assert.Equal(t, tt.want, res.code, res.stderr)
		})
	}
}

func TestRun_CycleIsConfigError(t *testing.T) {
	workspace(t)
	tasks := WithTasks(valueTask("a", 1, core.DependsOn("b")), valueTask("b", 1, core.DependsOn("a")))
	res := runCLI(t, []string{"validate"}, tasks)
	assert.Equal(t, ExitConfigError, res.code)
	assert.Contains(t, res.stderr, "cycle")
}

const pipelineYAML = `
tasks:
  - name: greet
    run: echo hello
  - name: shout
    depends_on: [greet]
    run: 'echo "$PW_GREET_STDOUT!"'
`

func TestRun_FromPipelineFile(t *testing.T) {
	dir := workspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte(pipelineYAML), 0o644))

	res := runCLI(t, []string{"run"})
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "✔ greet\n✔ shout\n")

	list := runCLI(t, []string{"list-tasks"})
	require.Equal(t, ExitSuccess, list.code, list.stderr)
	assert.Equal(t, "✔ greet\n✔ shout\n", list.stdout)

	valid := runCLI(t, []string{"validate"})
	require.Equal(t, ExitSuccess, valid.code, valid.stderr)
	assert.Contains(t, valid.stdout, "pipeline is valid: 2 tasks, 1 edges")
	assert.Contains(t, valid.stdout, "  1. greet (depth 0) -> shout\n")
	assert.Contains(t, valid.stdout, "  2. shout (depth 1)\n")
}

func TestRun_InvalidPipelineFileIsConfigError(t *testing.T) {
	dir := workspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte("tasks:\n  - name: a\n"), 0o644))

	res := runCLI(t, []string{"validate"})
	assert.Equal(t, ExitConfigError, res.code)
	assert.Contains(t, res.stderr, "invalid pipeline definition")

	res = runCLI(t, []string{"--pipeline", "missing.yaml", "run"})
	assert.Equal(t, ExitConfigError, res.code)
}

func TestListTasks_NeverRun(t *testing.T) {
	workspace(t)
	res := runCLI(t, []string{"list-tasks"}, WithTasks(valueTask("b", 1), valueTask("a", 1)))
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "  a\n  b\n", res.stdout)
}

func TestRuns_ListsRecords(t *testing.T) {
	workspace(t)
	tasks := WithTasks(valueTask("a", 1))
	require.Equal(t, ExitSuccess, runCLI(t, []string{"run"}, tasks).code)
	require.Equal(t, ExitSuccess, runCLI(t, []string{"run"}, tasks).code)

	res := runCLI(t, []string{"runs"})
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "succeeded")
	assert.Contains(t, lines[0], "1 tasks")
}

func TestRun_ConfigFileAndFlagsLayer(t *testing.T) {
	dir := workspace(t)
	cfg := "store_path: custom/state.json\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeweaver.yaml"), []byte(cfg), 0o644))
	tasks := WithTasks(valueTask("a", 1))

	res := runCLI(t, []string{"run", "--log-file", "logs/run.log"}, tasks)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(dir, "custom", "state.json"))

	logs, err := os.ReadFile(filepath.Join(dir, "logs", "run.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "reuse decision")

	res = runCLI(t, []string{"--store", "other.json", "run"}, tasks)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(dir, "other.json"))
}

func TestRun_WritesMetricsFile(t *testing.T) {
	workspace(t)
	t.Setenv("PIPEWEAVER_METRICS_FILE", "metrics.prom")

	res := runCLI(t, []string{"run"}, WithTasks(valueTask("a", 1)))
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	data, err := os.ReadFile("metrics.prom")
	require.NoError(t, err)
	assert.Contains(t, string(data), `pipeweaver_tasks_total{outcome="executed"} 1`)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitInternalError, ExitCode(errors.New("disk on fire")))
	assert.Equal(t, ExitGraphFailure, ExitCode(&ExitError{Code: ExitGraphFailure, Err: errors.New("x")}))
}
