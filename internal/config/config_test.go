package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "docker", cfg.Docker)
	assert.NotEmpty(t, cfg.WorkDir)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STATION_WORKDIR", "/srv/station")
	t.Setenv("STATION_CONCURRENCY", "8")
	t.Setenv("STATION_LOG_FORMAT", "json")
	t.Setenv("STATION_STEP_TIMEOUT", "90s")
	t.Setenv("STATION_KEEP_VOLUMES", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/srv/station", cfg.WorkDir)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 90*time.Second, cfg.StepTimeout)
	assert.True(t, cfg.KeepVolumes)
}

func TestFromEnvInvalid(t *testing.T) {
	t.Setenv("STATION_CONCURRENCY", "many")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "parse STATION_CONCURRENCY")
}

func TestValidate(t *testing.T) {
	cfg := &Config{WorkDir: "/tmp", Concurrency: 0, LogLevel: "loud", LogFormat: "xml"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "concurrency")
	assert.ErrorContains(t, err, "loud")
	assert.ErrorContains(t, err, "xml")
}
