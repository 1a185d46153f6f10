package definition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pipeweaver/internal/core"
)

// filesTask builds an impure source task. Every file matched by the patterns
// becomes a content-hashed artifact dated by its modification time, so an
// untouched file produces an equal artifact on the next run.
func filesTask(spec TaskSpec, resolver *Resolver) (*core.Task, error) {
	patterns := append([]string(nil), spec.Files...)
	fn := func(ctx context.Context, _ core.Args) (any, error) {
		paths, err := resolver.Expand(patterns)
		if err != nil {
			return nil, err
		}
		artifacts := make(map[string]core.Artifact, len(paths))
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, err := fileArtifact(p, resolver.Abs(p))
			if err != nil {
				return nil, err
			}
			artifacts[p] = a
		}
		return core.TaskResult{
			Values:    map[string]core.Value{"count": core.Int(int64(len(paths)))},
			Artifacts: artifacts,
		}, nil
	}
	return core.NewTask(spec.Name, fn, core.DependsOn(spec.DependsOn...), core.Impure())
}

// runTask builds a shell command task. The command sees spec.Env plus one
// PW_<TASK>_<NAME> variable per scalar value and artifact of its direct
// dependencies.
func runTask(spec TaskSpec, exec *Executor) (*core.Task, error) {
	pure := true
	if spec.Pure != nil {
		pure = *spec.Pure
	}
	command := spec.Run
	env := make(map[string]string, len(spec.Env))
	for k, v := range spec.Env {
		env[k] = v
	}
	outputs := make(map[string]string, len(spec.Outputs))
	for k, v := range spec.Outputs {
		outputs[k] = v
	}

	fn := func(ctx context.Context, args core.Args) (any, error) {
		vars := upstreamEnv(args.State(), exec.WorkingDir)
		for k, v := range env {
			vars[k] = v
		}

		res, err := exec.Execute(ctx, command, vars)
		if err != nil {
			return nil, err
		}
		if res.ExitCode != 0 {
			msg := strings.TrimSpace(string(res.Stderr))
			if msg == "" {
				return nil, fmt.Errorf("command exited with status %d", res.ExitCode)
			}
			return nil, fmt.Errorf("command exited with status %d: %s", res.ExitCode, msg)
		}

		artifacts := make(map[string]core.Artifact, len(outputs))
		for name, path := range outputs {
			abs := path
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(exec.WorkingDir, path)
			}
			a, err := fileArtifact(filepath.ToSlash(path), abs)
			if err != nil {
				return nil, fmt.Errorf("output %q: %w", name, err)
			}
			artifacts[name] = a
		}
		return core.TaskResult{
			Values: map[string]core.Value{
				"stdout":    core.String(string(res.Stdout)),
				"exit_code": core.Int(int64(res.ExitCode)),
			},
			Artifacts: artifacts,
		}, nil
	}
	return core.NewTask(spec.Name, fn, core.DependsOn(spec.DependsOn...), core.WithPurity(pure))
}

// fileArtifact records the file at abs under location.
func fileArtifact(location, abs string) (core.Artifact, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return core.Artifact{}, err
	}
	if info.IsDir() {
		return core.Artifact{}, fmt.Errorf("%s is a directory", location)
	}
	sum, err := core.HashFile(abs)
	if err != nil {
		return core.Artifact{}, err
	}
	a := core.NewArtifact(location, info.ModTime())
	a.Hash = sum
	return a, nil
}

func upstreamEnv(state *core.PipelineResult, baseDir string) map[string]string {
	vars := make(map[string]string)
	for _, task := range state.TaskNames() {
		r := state.TaskResults[task]
		for name, v := range r.Values {
			switch v.Kind() {
			case core.KindString:
				s, _ := v.AsString()
				vars[envName(task, name)] = s
			case core.KindInt, core.KindFloat, core.KindBool:
				vars[envName(task, name)] = v.String()
			}
		}
		for name, a := range r.Artifacts {
			loc := filepath.FromSlash(a.Location)
			if !filepath.IsAbs(loc) {
				loc = filepath.Join(baseDir, loc)
			}
			vars[envName(task, name)] = loc
		}
	}
	return vars
}

// envName builds PW_<TASK>_<NAME>, upper-cased, with every character that is
// not a letter or digit replaced by an underscore.
func envName(task, name string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z':
				return r - 'a' + 'A'
			case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			default:
				return '_'
			}
		}, s)
	}
	return "PW_" + clean(task) + "_" + clean(name)
}
