package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/pipewright/internal/cache"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/matrix"
	"github.com/vk/pipewright/internal/runner"
)

// execute drives one instance: acquire a runner, restore caches, run steps
// sequentially, persist cache misses, and report the terminal result back
// to the event loop.
func (s *Scheduler) execute(ctx context.Context, i int) {
	inst := s.graph.Instance(i)
	logger := ctxlog.FromContext(ctx).With("instance", inst.ID)

	res := Result{ID: inst.ID, StartedAt: time.Now()}

	lease, err := s.opts.Pool.Acquire(ctx, inst.Env)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// Never started running: a cancelled acquisition is a skip,
			// not a failure.
			res.State = Skipped
		case errors.Is(err, runner.ErrAcquireTimeout):
			logger.Error("Runner acquisition timed out.", "class", inst.Env.Class())
			res.State = Failed
		default:
			logger.Error("Runner acquisition failed.", "error", err)
			res.State = Failed
		}
		res.Err = err
		res.FinishedAt = time.Now()
		s.events <- event{kind: evFinished, idx: i, res: res}
		return
	}
	defer lease.Release()

	s.events <- event{kind: evStarted, idx: i}
	logger.Info("▶️ Starting instance", "class", inst.Env.Class())

	ec := lease.Context
	restored := s.restoreCaches(ctx, inst, ec)

	var log bytes.Buffer
	var stepErr error
	for _, step := range inst.Steps {
		fmt.Fprintf(&log, "--- %s\n$ %s\n", step.Name, step.Run)
		result, err := ec.RunStep(ctx, step.Run)
		if err != nil {
			fmt.Fprintf(&log, "!! %v\n", err)
			stepErr = fmt.Errorf("running step %q: %w", step.Name, err)
			break
		}
		log.Write(result.Output)
		if result.ExitCode != 0 {
			if step.CanFail {
				fmt.Fprintf(&log, "(step %q exited %d, tolerated)\n", step.Name, result.ExitCode)
				logger.Warn("Step failed but is tolerated.", "step", step.Name, "exit_code", result.ExitCode)
				continue
			}
			stepErr = &StepExecutionError{Instance: inst.ID, Step: step.Name, ExitCode: result.ExitCode}
			break
		}
	}

	if stepErr == nil {
		s.persistCaches(ctx, inst, ec, restored)
	}

	res.LogPath = s.writeLog(logger, inst.ID, log.Bytes())
	res.FinishedAt = time.Now()

	switch {
	case stepErr == nil:
		res.State = Succeeded
		logger.Info("✅ Instance succeeded")
	case inst.Template.ContinueOnError:
		// Reported as succeeded so dependents still run; the pipeline
		// aggregate is degraded via Tolerated.
		res.State = Succeeded
		res.Tolerated = true
		res.Err = stepErr
		logger.Warn("Instance failed but continue-on-error is set.", "error", stepErr)
	default:
		res.State = Failed
		res.Err = stepErr
		logger.Error("Instance failed.", "error", stepErr)
	}

	s.events <- event{kind: evFinished, idx: i, res: res}
}

// restoreCaches consults the store for every declared mount and restores
// hits into the execution context. Store trouble is a warning, never a
// failure: execution proceeds as a miss. Returns the set of mount paths
// that hit, so only misses are persisted afterwards.
func (s *Scheduler) restoreCaches(ctx context.Context, inst *matrix.Instance, ec runner.ExecutionContext) map[string]bool {
	logger := ctxlog.FromContext(ctx).With("instance", inst.ID)
	restored := make(map[string]bool)
	if s.opts.Cache == nil {
		return restored
	}
	for _, mount := range inst.Caches {
		key, err := cache.ResolveKey(mount.KeyTemplate, s.opts.Workdir)
		if err != nil {
			logger.Warn("Cache key did not resolve; treating as miss.", "template", mount.KeyTemplate, "error", err)
			continue
		}
		entry, err := s.opts.Cache.Get(ctx, key)
		if err != nil {
			logger.Warn("Cache store unavailable; treating as miss.", "key", key, "error", err)
			continue
		}
		if entry == nil {
			logger.Debug("Cache miss.", "key", key, "path", mount.Path)
			continue
		}
		if err := ec.RestoreCache(mount.Path, entry.Blob); err != nil {
			logger.Warn("Cache restore failed; proceeding without it.", "key", key, "error", err)
			continue
		}
		restored[mount.Path] = true
		logger.Debug("Cache restored.", "key", key, "path", mount.Path, "origin", entry.Origin)
	}
	return restored
}

// persistCaches writes back mounts that missed. First-writer-wins: a losing
// Put is a no-op, not an error.
func (s *Scheduler) persistCaches(ctx context.Context, inst *matrix.Instance, ec runner.ExecutionContext, restored map[string]bool) {
	logger := ctxlog.FromContext(ctx).With("instance", inst.ID)
	if s.opts.Cache == nil {
		return
	}
	for _, mount := range inst.Caches {
		if restored[mount.Path] {
			continue
		}
		key, err := cache.ResolveKey(mount.KeyTemplate, s.opts.Workdir)
		if err != nil {
			continue
		}
		blob, err := ec.CollectCache(mount.Path)
		if err != nil {
			logger.Warn("Collecting cache mount failed; nothing persisted.", "path", mount.Path, "error", err)
			continue
		}
		created, err := s.opts.Cache.Put(ctx, &cache.Entry{Key: key, Blob: blob, Origin: inst.ID})
		if err != nil {
			logger.Warn("Cache store unavailable; entry not persisted.", "key", key, "error", err)
			continue
		}
		if created {
			logger.Debug("Cache entry written.", "key", key, "path", mount.Path)
		} else {
			logger.Debug("Cache key already present; write skipped.", "key", key)
		}
	}
}

// writeLog stores the captured step output under LogDir, returning the path
// or "" when logging to disk is disabled.
func (s *Scheduler) writeLog(logger *slog.Logger, id string, output []byte) string {
	if s.opts.LogDir == "" {
		return ""
	}
	if err := os.MkdirAll(s.opts.LogDir, 0o755); err != nil {
		logger.Warn("Creating log directory failed.", "error", err)
		return ""
	}
	path := filepath.Join(s.opts.LogDir, id+".log")
	if err := os.WriteFile(path, output, 0o644); err != nil {
		logger.Warn("Writing instance log failed.", "error", err)
		return ""
	}
	return path
}
