package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeweaver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "store_path: data/state.json\nlog_level: debug\nlock_timeout: 2s\nverbose: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "data", "state.json"), cfg.StorePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, Defaults().RunsDir, cfg.RunsDir, "unset fields keep defaults")
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_FileCanSetZeroLockTimeout(t *testing.T) {
	path := writeConfig(t, "lock_timeout: 0s\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.LockTimeout)

	path = writeConfig(t, "log_level: debug\n")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults().LockTimeout, cfg.LockTimeout, "absent key keeps the default")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nlog_format: json\n")
	t.Setenv("PIPEWEAVER_LOG_LEVEL", "warn")
	t.Setenv("PIPEWEAVER_STORE_PATH", "/tmp/elsewhere.json")
	t.Setenv("PIPEWEAVER_LOCK_TIMEOUT", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/tmp/elsewhere.json", cfg.StorePath)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "entry_point: main.py\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MalformedEnvIsAnError(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PIPEWEAVER_VERBOSE", "maybe")
	t.Setenv("PIPEWEAVER_LOCK_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `PIPEWEAVER_VERBOSE="maybe" is not a valid boolean`)
	assert.Contains(t, err.Error(), `PIPEWEAVER_LOCK_TIMEOUT="soon" is not a valid duration`)
}

func TestValidate_JoinsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.StorePath = ""
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"store_path", "log_level", "log_format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestEnvBoolFallback(t *testing.T) {
	v, err := envBool("TEST_BOOL_MISSING", true)
	require.NoError(t, err)
	assert.True(t, v)
}
