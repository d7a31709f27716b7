package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/vk/pipewright/internal/cache"
	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/notify"
	"github.com/vk/pipewright/internal/pipeline"
	"github.com/vk/pipewright/internal/runner"
	"github.com/vk/pipewright/internal/scheduler"
)

// Run executes one pipeline run for the configured trigger event and prints
// the per-instance report table. The returned report is non-nil whenever
// graph construction succeeded, even if the run failed or was cancelled.
func (a *App) Run(ctx context.Context) (*pipeline.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.StatusPort > 0 {
		a.startStatusServer(a.config.StatusPort)
	}

	pool := runner.NewPool(runner.PoolOptions{
		Backends: map[string]runner.Backend{
			config.EnvKindOS:        &runner.LocalBackend{BaseDir: a.config.Workdir},
			config.EnvKindContainer: &runner.ContainerBackend{Runtime: a.config.ContainerRuntime, BaseDir: a.config.Workdir},
		},
		Sizes:          a.model.PoolSizes,
		DefaultSlots:   a.config.DefaultSlots,
		AcquireTimeout: a.config.AcquireTimeout,
	})

	var store cache.Store
	if a.config.CacheDir != "" {
		store = cache.NewFileStore(a.config.CacheDir)
	} else {
		store = cache.NewMemoryStore()
	}

	var notifiers []pipeline.Notifier
	if a.config.WebhookURL != "" {
		notifiers = append(notifiers, &notify.Webhook{URL: a.config.WebhookURL})
	}
	if a.config.SocketIOURL != "" {
		notifiers = append(notifiers, &notify.SocketIO{URL: a.config.SocketIOURL})
	}

	controller := pipeline.NewController(a.model, scheduler.Options{
		Pool:         pool,
		Cache:        store,
		Workdir:      a.config.Workdir,
		LogDir:       a.config.LogDir,
		OnTransition: a.status.set,
	}, notifiers...)

	a.logger.Info("🚀 Starting pipeline run", "trigger", a.config.Trigger)
	report, err := controller.Run(ctx, a.config.Trigger)
	if err != nil {
		return nil, fmt.Errorf("pipeline run failed to start: %w", err)
	}
	a.logger.Info("🏁 Pipeline run finished", "status", report.Status)

	a.printReport(report)
	return report, nil
}

// printReport renders the per-instance table to the app's output writer.
func (a *App) printReport(report *pipeline.Report) {
	w := tabwriter.NewWriter(a.outW, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "\nRUN\t%s\n", report.RunID)
	fmt.Fprintf(w, "STATUS\t%s\n\n", report.Status)
	fmt.Fprintln(w, "INSTANCE\tSTATE\tDURATION\tLOG")
	for _, inst := range report.Instances {
		state := inst.State
		if inst.Tolerated {
			state += " (tolerated failure)"
		}
		fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", inst.ID, state, inst.DurationMS, inst.LogPath)
	}
	w.Flush()
}
