package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"ci.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "ci.hcl", cfg.PipelinePath)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, "push", cfg.Trigger)
	assert.Equal(t, ".", cfg.Workdir)
	assert.Equal(t, 4, cfg.DefaultSlots)
	assert.Equal(t, 10*time.Minute, cfg.AcquireTimeout)
	assert.Equal(t, "docker", cfg.ContainerRuntime)
	assert.Equal(t, 0, cfg.StatusPort)
}

func TestParse_Flags(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-pipeline", "ci/",
		"-trigger", "pull_request",
		"-cache-dir", "/var/cache/pw",
		"-log-dir", "/tmp/logs",
		"-status-port", "8177",
		"-log-format", "json",
		"-log-level", "debug",
		"-runner-slots", "2",
		"-acquire-timeout", "30s",
		"-webhook-url", "https://ci.example.com/hook",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "ci/", cfg.PipelinePath)
	assert.Equal(t, "pull_request", cfg.Trigger)
	assert.Equal(t, "/var/cache/pw", cfg.CacheDir)
	assert.Equal(t, "/tmp/logs", cfg.LogDir)
	assert.Equal(t, 8177, cfg.StatusPort)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.DefaultSlots)
	assert.Equal(t, 30*time.Second, cfg.AcquireTimeout)
	assert.Equal(t, "https://ci.example.com/hook", cfg.WebhookURL)
}

func TestParse_FlagWinsOverPositional(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := Parse([]string{"-pipeline", "a.hcl", "b.hcl"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "a.hcl", cfg.PipelinePath)
}

func TestParse_MissingPath(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse(nil, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Help(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-help"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "pipewright")
}

func TestParse_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-bogus"}, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
