// Package metrics provides Prometheus metrics for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pipeweaver"

// Metrics holds the collectors updated by the pipeline engine. The zero
// value is not usable; a nil *Metrics records nothing.
type Metrics struct {
	// TasksTotal counts task decisions by outcome.
	TasksTotal *prometheus.CounterVec // "reused", "executed", "failed", "skipped"

	// TaskDuration tracks task execution time, reuse checks included.
	TaskDuration *prometheus.HistogramVec

	// RunsTotal counts finished runs by status.
	RunsTotal *prometheus.CounterVec // "succeeded", "failed", "aborted"

	// CheckpointsTotal counts state checkpoints by result.
	CheckpointsTotal *prometheus.CounterVec // "ok", "error"
}

// New registers the pipeline collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TasksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of tasks by outcome",
			},
			[]string{"outcome"},
		),
		TaskDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task duration in seconds by outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of runs by final status",
			},
			[]string{"status"},
		),
		CheckpointsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoints_total",
				Help:      "Total number of state checkpoints by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveTask records one task decision.
func (m *Metrics) ObserveTask(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(outcome).Inc()
	m.TaskDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// ObserveCheckpoint records a checkpoint attempt.
func (m *Metrics) ObserveCheckpoint(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CheckpointsTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes every metric gathered by g to path in the Prometheus
// text format, for collection by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
