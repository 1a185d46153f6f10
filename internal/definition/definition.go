// Package definition loads YAML pipeline definitions and turns them into
// runnable tasks.
package definition

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"pipeweaver/internal/core"
)

//go:embed schema/pipeline.schema.json
var pipelineSchemaJSON []byte

const pipelineSchemaURL = "pipeline.schema.json"

// ErrInvalidDefinition is returned when a pipeline file does not match the
// definition schema.
var ErrInvalidDefinition = errors.New("invalid pipeline definition")

// File is a parsed pipeline definition.
type File struct {
	Tasks []TaskSpec `yaml:"tasks"`

	// BaseDir is the directory commands run in and relative paths resolve
	// against. Load sets it to the directory holding the file.
	BaseDir string `yaml:"-"`
}

// TaskSpec declares one task. Exactly one of Files and Run is set.
type TaskSpec struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`

	// Files lists glob patterns. Each matching file becomes an artifact
	// named by its path relative to the base directory.
	Files []string `yaml:"files"`

	// Run is a shell command.
	Run string `yaml:"run"`
	// Outputs maps artifact names to the files Run produces.
	Outputs map[string]string `yaml:"outputs"`
	// Env is the complete environment of Run, apart from the PW_ variables
	// describing upstream results.
	Env  map[string]string `yaml:"env"`
	Pure *bool             `yaml:"pure"`
}

// Load reads and validates the definition at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	f.BaseDir = abs
	return f, nil
}

// Parse validates data against the definition schema and decodes it. Unknown
// keys are rejected.
func Parse(data []byte) (*File, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return &f, nil
}

func validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	// Round-trip through JSON so the validator only sees JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var inst any
	if err := dec.Decode(&inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	schema, err := compileSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(pipelineSchemaURL, bytes.NewReader(pipelineSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add pipeline schema: %w", err)
	}
	schema, err := compiler.Compile(pipelineSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile pipeline schema: %w", err)
	}
	return schema, nil
}

// BuildTasks converts every declared task into a *core.Task.
func (f *File) BuildTasks() ([]*core.Task, error) {
	exec := NewExecutor(f.BaseDir)
	resolver := NewResolver(f.BaseDir)

	tasks := make([]*core.Task, 0, len(f.Tasks))
	var errs []error
	for _, spec := range f.Tasks {
		var (
			t   *core.Task
			err error
		)
		if len(spec.Files) > 0 {
			t, err = filesTask(spec, resolver)
		} else {
			t, err = runTask(spec, exec)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, t)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return tasks, nil
}
