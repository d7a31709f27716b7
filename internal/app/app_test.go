package app

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/hcl"
	"github.com/vk/pipewright/internal/scheduler"
	"github.com/vk/pipewright/internal/yamlcfg"
)

func TestPickLoader(t *testing.T) {
	cases := []struct {
		name   string
		config Config
		want   any
	}{
		{"explicit hcl", Config{PipelinePath: "x", Format: "hcl"}, &hcl.Loader{}},
		{"explicit yaml", Config{PipelinePath: "x", Format: "yaml"}, &yamlcfg.Loader{}},
		{"auto yaml by extension", Config{PipelinePath: "ci.yaml", Format: "auto"}, &yamlcfg.Loader{}},
		{"auto yml by extension", Config{PipelinePath: "ci.yml", Format: "auto"}, &yamlcfg.Loader{}},
		{"auto defaults to hcl", Config{PipelinePath: "ci.hcl", Format: "auto"}, &hcl.Loader{}},
		{"directories default to hcl", Config{PipelinePath: "ci/", Format: ""}, &hcl.Loader{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loader, err := PickLoader(&tc.config)
			require.NoError(t, err)
			assert.IsType(t, tc.want, loader)
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		_, err := PickLoader(&Config{PipelinePath: "x", Format: "toml"})
		require.Error(t, err)
	})
}

func TestNewApp_LoadsModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
job "build" {
  runs_on = "ubuntu"
  step "s" { run = "true" }
}
`), 0o644))

	cfg, err := NewConfig(Config{PipelinePath: path, LogLevel: "error"})
	require.NoError(t, err)

	a := NewApp(io.Discard, cfg, hcl.NewLoader())
	require.Len(t, a.Model().Jobs, 1)
	assert.Equal(t, "build", a.Model().Jobs[0].Name)
}

func TestNewApp_PanicsOnBrokenPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`job "a" {`), 0o644))

	cfg, err := NewConfig(Config{PipelinePath: path, LogLevel: "error"})
	require.NoError(t, err)

	assert.Panics(t, func() {
		NewApp(io.Discard, cfg, hcl.NewLoader())
	})
}

func TestNewConfig_RequiresPipelinePath(t *testing.T) {
	_, err := NewConfig(Config{})
	require.Error(t, err)
}

func TestStatusRoutes(t *testing.T) {
	table := newStatusTable()
	table.set("build-linux", scheduler.Running)
	table.set("build-darwin", scheduler.Succeeded)

	router := statusRouter(table)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, 200, rec.Code)
		assert.Equal(t, "OK\n", rec.Body.String())
	})

	t.Run("status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
		assert.Equal(t, 200, rec.Code)
		assert.JSONEq(t, `{"build-linux":"running","build-darwin":"succeeded"}`, rec.Body.String())
	})
}
