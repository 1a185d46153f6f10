package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTask("executed", 10*time.Millisecond)
	m.ObserveTask("executed", 20*time.Millisecond)
	m.ObserveTask("reused", 0)
	m.ObserveRun("succeeded")
	m.ObserveCheckpoint(nil)
	m.ObserveCheckpoint(errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("reused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointsTotal.WithLabelValues("error")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTask("executed", time.Second)
	m.ObserveRun("failed")
	m.ObserveCheckpoint(nil)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRun("aborted")

	path := filepath.Join(t.TempDir(), "pipeweaver.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pipeweaver_runs_total{status="aborted"} 1`)
}
