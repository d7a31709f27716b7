// Package app wires the engine together: configuration, logging, the
// runner pool, the cache store, notifiers and the pipeline controller.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/hcl"
	"github.com/vk/pipewright/internal/yamlcfg"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *config.Model
	status *statusTable
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and a loaded,
// validated pipeline model. A failure to load the pipeline is a fatal
// startup error and panics; main recovers it into a clean exit.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline configuration: %w", err))
	}
	logger.Debug("Pipeline configuration loaded.", "jobs", len(model.Jobs))

	return &App{
		outW:   outW,
		logger: logger,
		config: appConfig,
		model:  model,
		status: newStatusTable(),
	}
}

// Model returns the loaded pipeline model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// PickLoader selects a document loader from the configured format, falling
// back to the pipeline path's extension.
func PickLoader(appConfig *Config) (config.Loader, error) {
	format := appConfig.Format
	if format == "" || format == "auto" {
		switch strings.ToLower(filepath.Ext(appConfig.PipelinePath)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "hcl"
		}
	}
	switch format {
	case "hcl":
		return hcl.NewLoader(), nil
	case "yaml":
		return yamlcfg.NewLoader(), nil
	default:
		return nil, fmt.Errorf("unknown pipeline format %q (want hcl or yaml)", format)
	}
}
