package state

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"pipeweaver/internal/core"
)

var (
	ErrCorruptState = errors.New("corrupt state file")
	ErrStoreLocked  = errors.New("state store is locked by another run")
)

// Store persists the accumulated PipelineResult of a pipeline in a single
// JSON file.
//
// All writes are atomic and durable (file sync + atomic rename + dir sync),
// so an interrupted run leaves the last complete checkpoint on disk.
type Store struct {
	path   string
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewStore returns a store for the state file at path. A nil logger discards
// log output.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	schema, err := compileStateSchema()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{path: path, schema: schema, logger: logger.With("store", path)}, nil
}

// Path returns the location of the state file.
func (s *Store) Path() string { return s.path }

// Load reads the persisted state. A missing file yields an empty state.
//
// The document is validated against the embedded schema and then decoded
// strictly: unknown fields and trailing data are rejected.
func (s *Store) Load() (*core.PipelineResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no previous state")
		return core.NewPipelineResult(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	if err := validateDocument(s.schema, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}
	result := core.NewPipelineResult()
	if err := decodeJSONStrict(data, result); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}
	s.logger.Debug("loaded state", "tasks", len(result.TaskResults))
	return result, nil
}

// Save atomically replaces the state file with p.
//
// A state that cannot be serialized, or that Load would reject, is reported
// as a *core.InvalidTaskResultError and nothing is written.
func (s *Store) Save(p *core.PipelineResult) error {
	if p == nil {
		p = core.NewPipelineResult()
	}
	data, err := jsonMarshalStable(p)
	if err != nil {
		return &core.InvalidTaskResultError{Cause: err}
	}
	if err := validateDocument(s.schema, data); err != nil {
		return &core.InvalidTaskResultError{Cause: err}
	}
	if err := writeFileAtomicDurable(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	s.logger.Debug("saved state", "tasks", len(p.TaskResults), "bytes", len(data))
	return nil
}
