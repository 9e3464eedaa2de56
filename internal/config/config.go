// Package config holds the settings shared by the station commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jtarchie/station/internal/logging"
)

// Config is resolved from the environment first and then overridden by
// command line flags.
type Config struct {
	WorkDir     string // volumes are allocated below this directory
	Concurrency int    // leaves dispatched at once within a batch
	LogLevel    string
	LogFormat   string
	Docker      string // docker binary
	StepTimeout time.Duration
	KeepVolumes bool
}

// FromEnv reads STATION_* variables on top of the defaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		WorkDir:   envString("STATION_WORKDIR", filepath.Join(os.TempDir(), "station")),
		LogLevel:  envString("STATION_LOG_LEVEL", "info"),
		LogFormat: envString("STATION_LOG_FORMAT", "text"),
		Docker:    envString("STATION_DOCKER", "docker"),
	}

	var err error
	if cfg.Concurrency, err = envInt("STATION_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.StepTimeout, err = envDuration("STATION_STEP_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.KeepVolumes, err = envBool("STATION_KEEP_VOLUMES", false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the commands cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.WorkDir == "" {
		errs = append(errs, errors.New("work dir must not be empty"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q, expected text or json", c.LogFormat))
	}
	if c.StepTimeout < 0 {
		errs = append(errs, fmt.Errorf("step timeout must not be negative, got %s", c.StepTimeout))
	}
	return errors.Join(errs...)
}
