// Package config loads pipeweaver settings from defaults, a YAML file and
// PIPEWEAVER_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file read when no path is given.
const DefaultFile = "pipeweaver.yaml"

const envPrefix = "PIPEWEAVER_"

// Config holds all settings. Precedence, highest first: command-line flags
// (applied by the caller), environment, config file, defaults.
type Config struct {
	// StorePath is the persisted pipeline state file.
	StorePath string `yaml:"store_path"`
	// RunsDir holds one JSON record per run.
	RunsDir string `yaml:"runs_dir"`
	// PipelineFile is the YAML pipeline definition.
	PipelineFile string `yaml:"pipeline_file"`

	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Verbose   bool   `yaml:"verbose"`

	// LockTimeout bounds how long a run waits for the store lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// MetricsFile receives Prometheus text-format metrics after each run.
	MetricsFile string `yaml:"metrics_file"`

	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELInsecure bool   `yaml:"otel_insecure"`
	ServiceName  string `yaml:"service_name"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		StorePath:    filepath.Join(".pipeweaver", "state.json"),
		RunsDir:      filepath.Join(".pipeweaver", "runs"),
		PipelineFile: "pipeline.yaml",
		LogLevel:     "info",
		LogFormat:    "text",
		LockTimeout:  5 * time.Second,
		ServiceName:  "pipeweaver",
	}
}

// Load builds the configuration from defaults, the config file at path and
// the environment. An empty path reads DefaultFile if it exists; an explicit
// path must exist. Relative paths in the file are resolved against the
// file's directory.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	fileCfg, keys, err := readFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return Config{}, err
	default:
		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("config: merge %s: %w", path, err)
		}
		// mergo skips zero values; an explicit lock_timeout: 0 means a
		// single lock attempt.
		if _, ok := keys["lock_timeout"]; ok {
			cfg.LockTimeout = fileCfg.LockTimeout
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readFile decodes the config file at path and also returns the set of keys
// it sets.
func readFile(path string) (Config, map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, nil, err
	}
	var fileCfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	var keys map[string]any
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return Config{}, nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&fileCfg.StorePath, &fileCfg.RunsDir, &fileCfg.PipelineFile, &fileCfg.LogFile, &fileCfg.MetricsFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return fileCfg, keys, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	cfg.StorePath = envStr("STORE_PATH", cfg.StorePath)
	cfg.RunsDir = envStr("RUNS_DIR", cfg.RunsDir)
	cfg.PipelineFile = envStr("PIPELINE_FILE", cfg.PipelineFile)
	cfg.LogFile = envStr("LOG_FILE", cfg.LogFile)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envStr("LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsFile = envStr("METRICS_FILE", cfg.MetricsFile)
	cfg.OTELEndpoint = envStr("OTEL_ENDPOINT", cfg.OTELEndpoint)
	cfg.ServiceName = envStr("SERVICE_NAME", cfg.ServiceName)

	var err error
	if cfg.Verbose, err = envBool("VERBOSE", cfg.Verbose); err != nil {
		errs = append(errs, err)
	}
	if cfg.OTELInsecure, err = envBool("OTEL_INSECURE", cfg.OTELInsecure); err != nil {
		errs = append(errs, err)
	}
	if cfg.LockTimeout, err = envDuration("LOCK_TIMEOUT", cfg.LockTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks that required settings are present and well-formed.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StorePath) == "" {
		errs = append(errs, errors.New("config: store_path is required"))
	}
	if strings.TrimSpace(c.RunsDir) == "" {
		errs = append(errs, errors.New("config: runs_dir is required"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: invalid log_level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: invalid log_format %q", c.LogFormat))
	}
	if c.LockTimeout < 0 {
		errs = append(errs, errors.New("config: lock_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) (bool, error) {
	name := envPrefix + key
	v := os.Getenv(name)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", name, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	name := envPrefix + key
	v := os.Getenv(name)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", name, v)
	}
	return d, nil
}
