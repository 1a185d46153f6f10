package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, Args) (any, error) { return TaskResult{}, nil }

func TestNewTask_DefaultsToPure(t *testing.T) {
	task, err := NewTask("a", noop)
	require.NoError(t, err)
	def := task.Def()
	assert.Equal(t, "a", def.Name)
	assert.True(t, def.Pure)
	assert.Empty(t, def.DependsOn)
}

func TestNewTask_BuildsParameterBindings(t *testing.T) {
	task, err := NewTask("c", noop,
		DependsOn("a", "b"),
		Impure(),
		WithState("state"),
		WithValue("x", "a", "x"),
		WithArtifact("file", "b", "out"),
		WithSelector("sum", func(*PipelineResult) (any, error) { return 1, nil }),
	)
	require.NoError(t, err)

	def := task.Def()
	assert.False(t, def.Pure)
	assert.Equal(t, []string{"a", "b"}, def.DependsOn)
	require.Len(t, def.Params, 4)
	assert.Equal(t, FullPipelineState, def.Params[0].Kind)
	assert.Equal(t, ValueOf("a", "x"), *def.Params[1].Result)
	assert.Equal(t, ArtifactOf("b", "out"), *def.Params[2].Result)
	assert.NotNil(t, def.Params[3].Selector)
}

func TestNewTask_DefIsImmutable(t *testing.T) {
	task := MustTask("b", noop, DependsOn("a"), WithValue("x", "a", "x"))
	def := task.Def()
	def.DependsOn[0] = "zzz"
	def.Params[0].Result.Task = "zzz"

	again := task.Def()
	assert.Equal(t, []string{"a"}, again.DependsOn)
	assert.Equal(t, "a", again.Params[0].Result.Task)
}

func TestNewTask_RejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]struct {
		name string
		fn   TaskFunc
		opts []TaskOption
	}{
		"empty name":          {"", noop, nil},
		"nil function":        {"a", nil, nil},
		"duplicate dep":       {"a", noop, []TaskOption{DependsOn("b", "b")}},
		"undeclared producer": {"a", noop, []TaskOption{WithValue("x", "b", "x")}},
		"duplicate param":     {"a", noop, []TaskOption{DependsOn("b"), WithValue("x", "b", "x"), WithArtifact("x", "b", "y")}},
		"two state params":    {"a", noop, []TaskOption{WithState("s"), WithState("t")}},
		"empty result name":   {"a", noop, []TaskOption{DependsOn("b"), WithValue("x", "b", "")}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTask(tc.name, tc.fn, tc.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTaskDefinition)
		})
	}
}

func TestTaskInvoke_RecoversPanic(t *testing.T) {
	task := MustTask("p", func(context.Context, Args) (any, error) { panic("kaboom") })
	_, err := task.Invoke(context.Background(), NewArgs(nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestArgsAccessors(t *testing.T) {
	state := sampleState()
	art, err := state.Artifact("a", "out")
	require.NoError(t, err)

	args := NewArgs(state, map[string]any{"x": Int(1), "raw": 2, "file": art})

	v, err := args.Value("x")
	require.NoError(t, err)
	assert.True(t, v.Equal(Int(1)))

	v, err = args.Value("raw")
	require.NoError(t, err)
	assert.True(t, v.Equal(Int(2)))

	got, err := args.Artifact("file")
	require.NoError(t, err)
	assert.True(t, got.Equal(art))

	_, err = args.Artifact("x")
	require.Error(t, err)
	_, err = args.Value("missing")
	require.Error(t, err)

	raw, ok := args.Get("raw")
	assert.True(t, ok)
	assert.Equal(t, 2, raw)
	assert.Same(t, state, args.State())
	assert.NotNil(t, NewArgs(nil, nil).State())
}

func TestTaskDefValidate_JoinsAllProblems(t *testing.T) {
	err := TaskDef{DependsOn: []string{""}}.Validate()
	require.Error(t, err)
	var defErr *InvalidTaskDefinitionError
	assert.True(t, errors.As(err, &defErr))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "empty dependency name")
}
