package state

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	// RunFailed means the run completed but at least one task failed or was
	// skipped.
	RunFailed RunStatus = "failed"
	// RunAborted means the run stopped early on a configuration, lock or
	// persistence error.
	RunAborted RunStatus = "aborted"
)

type FailureClass string

const (
	FailureClassConfiguration FailureClass = "configuration"
	FailureClassSerialization FailureClass = "serialization"
	FailureClassSystem        FailureClass = "system"
)

// Failure is the recorded reason a run aborted.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Task         *string      `json:"task,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassConfiguration, FailureClassSerialization, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Task != nil && strings.TrimSpace(*f.Task) == "" {
		errs = append(errs, errors.New("task must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}

// TaskOutcome is the per-task line of a run record.
type TaskOutcome struct {
	Task       string `json:"task"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Cause      string `json:"cause,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// RunRecord is the persisted metadata of one pipeline run.
type RunRecord struct {
	RunID      string        `json:"run_id"`
	GraphHash  string        `json:"graph_hash"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time"`
	Status     RunStatus     `json:"status"`
	UpTo       string        `json:"up_to,omitempty"`
	ForceRerun []string      `json:"force_rerun"`
	Tasks      []TaskOutcome `json:"tasks"`
	TraceHash  string        `json:"trace_hash,omitempty"`
	Failure    *Failure      `json:"failure,omitempty"`
}

func (r RunRecord) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	} else if _, err := uuid.Parse(r.RunID); err != nil {
		errs = append(errs, fmt.Errorf("run_id: %w", err))
	}
	if strings.TrimSpace(r.GraphHash) == "" {
		errs = append(errs, errors.New("graph_hash is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case RunRunning:
		if r.EndTime != nil {
			errs = append(errs, errors.New("a running run has no end_time"))
		}
	case RunSucceeded, RunFailed, RunAborted:
		if r.EndTime == nil {
			errs = append(errs, fmt.Errorf("status %s requires end_time", r.Status))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time precedes start_time"))
	}
	if r.ForceRerun == nil {
		errs = append(errs, errors.New("force_rerun must be an array (not null)"))
	}
	if r.Tasks == nil {
		errs = append(errs, errors.New("tasks must be an array (not null)"))
	}
	for i, t := range r.Tasks {
		if strings.TrimSpace(t.Task) == "" {
			errs = append(errs, fmt.Errorf("tasks[%d].task is required", i))
		}
	}
	if r.Failure != nil {
		if r.Status != RunAborted {
			errs = append(errs, errors.New("failure is only recorded for aborted runs"))
		}
		if err := r.Failure.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("failure: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// RunLog stores one JSON record per run under:
//
//	<dir>/<run-id>.json
type RunLog struct {
	dir    string
	logger *slog.Logger
}

func NewRunLog(dir string, logger *slog.Logger) (*RunLog, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("runs dir is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RunLog{dir: dir, logger: logger}, nil
}

func (l *RunLog) runPath(runID string) string {
	return filepath.Join(l.dir, runID+".json")
}

// Save writes rec atomically, replacing any earlier record with the same ID.
func (l *RunLog) Save(rec RunRecord) error {
	if rec.ForceRerun == nil {
		rec.ForceRerun = []string{}
	}
	if rec.Tasks == nil {
		rec.Tasks = []TaskOutcome{}
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if err := ensureDirDurable(l.dir, 0o755); err != nil {
		return fmt.Errorf("ensure runs dir: %w", err)
	}
	data, err := jsonMarshalStable(rec)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := writeFileAtomicDurable(l.runPath(rec.RunID), data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	l.logger.Debug("saved run record", "run_id", rec.RunID, "status", rec.Status)
	return nil
}

func (l *RunLog) Load(runID string) (RunRecord, error) {
	var rec RunRecord
	if strings.TrimSpace(runID) == "" {
		return RunRecord{}, errors.New("runID is required")
	}
	if err := readJSONStrict(l.runPath(runID), &rec); err != nil {
		return RunRecord{}, err
	}
	if err := rec.Validate(); err != nil {
		return RunRecord{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return rec, nil
}

// List returns every record, oldest first. Ties on start time are broken by
// run ID.
func (l *RunLog) List() ([]RunRecord, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	runs := make([]RunRecord, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := l.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, fmt.Errorf("load run %s: %w", name, err)
		}
		runs = append(runs, rec)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartTime.Equal(runs[j].StartTime) {
			return runs[i].StartTime.Before(runs[j].StartTime)
		}
		return runs[i].RunID < runs[j].RunID
	})
	return runs, nil
}
