// Package pipeline is the top-level driver: it filters job templates by the
// trigger event, expands matrices, builds the DAG, runs the scheduler to
// quiescence and aggregates the final status.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/dag"
	"github.com/vk/pipewright/internal/matrix"
	"github.com/vk/pipewright/internal/scheduler"
)

// Notifier receives the final report. Implementations live in the notify
// package; failures are logged and never fail the run.
type Notifier interface {
	Notify(ctx context.Context, report *Report) error
}

// Controller drives one pipeline model. Safe to reuse across trigger events.
type Controller struct {
	model     *config.Model
	schedOpts scheduler.Options
	notifiers []Notifier
}

// NewController assembles a controller. The scheduler options carry the
// runner pool, cache store and log directory the runs will use.
func NewController(model *config.Model, schedOpts scheduler.Options, notifiers ...Notifier) *Controller {
	return &Controller{model: model, schedOpts: schedOpts, notifiers: notifiers}
}

// Run executes the pipeline for one trigger event. Graph-construction
// errors (empty matrix axis, unknown dependency, cycle) abort before any
// job executes and are returned as the error. Execution-time failures are
// captured in the report, not the error.
func (c *Controller) Run(ctx context.Context, trigger string) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	runID := uuid.NewString()
	logger = logger.With("run_id", runID, "trigger", trigger)
	ctx = ctxlog.WithLogger(ctx, logger)
	startedAt := time.Now()

	var templates []*config.JobTemplate
	for _, tmpl := range c.model.Jobs {
		if tmpl.Triggers(trigger) {
			templates = append(templates, tmpl)
		}
	}
	logger.Info("Pipeline run starting.", "templates", len(templates))

	instances, err := matrix.ExpandAll(templates)
	if err != nil {
		return nil, err
	}
	logger.Debug("Matrix expansion complete.", "instances", len(instances))

	graph, err := dag.Build(ctx, instances)
	if err != nil {
		return nil, err
	}
	logger.Debug("Dependency graph built.")

	results := scheduler.New(graph, c.schedOpts).Run(ctx)
	report := buildReport(runID, trigger, startedAt, results)
	logger.Info("Pipeline run finished.", "status", report.Status, "instances", len(report.Instances))

	for _, n := range c.notifiers {
		// Notification uses a fresh context so a cancelled run still
		// reports its (failed) outcome.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := n.Notify(nctx, report); err != nil {
			logger.Warn("Notifier failed.", "error", err)
		}
		cancel()
	}

	return report, nil
}
