// Package runner provides bounded pools of ephemeral execution contexts.
// The pool does slot accounting per environment class; the actual step
// execution is delegated to a Backend per environment kind, keeping the
// process/container runtime an external collaborator.
package runner

import (
	"context"

	"github.com/vk/pipewright/internal/config"
)

// StepResult is the outcome of one step command.
type StepResult struct {
	ExitCode int
	Output   []byte
}

// ExecutionContext is one acquired runner. Steps within a context run
// strictly sequentially; the scheduler never calls RunStep concurrently on
// the same context.
type ExecutionContext interface {
	// RunStep executes a single command. A non-zero exit is reported in the
	// StepResult, not as an error; the error return covers failures to run
	// the command at all.
	RunStep(ctx context.Context, command string) (*StepResult, error)

	// RestoreCache materializes a cached blob at the given mount path
	// before any step runs.
	RestoreCache(mountPath string, blob []byte) error

	// CollectCache captures the mount path's contents for persisting after
	// a successful run.
	CollectCache(mountPath string) ([]byte, error)

	// Close releases any state held by the context (work directories,
	// containers). Called exactly once, by the pool, on lease release.
	Close() error
}

// Backend opens execution contexts for one environment kind.
type Backend interface {
	Open(ctx context.Context, env config.Environment) (ExecutionContext, error)
}
