// Package runnertest provides an in-memory runner backend for scheduler and
// pipeline tests. Step "commands" are looked up in a script table instead of
// being executed, so tests control exit codes, latency and ordering without
// touching a shell.
package runnertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/runner"
)

// StepScript describes the fake outcome for one command string.
type StepScript struct {
	ExitCode int
	Output   string
	Delay    time.Duration
	// Block, when non-nil, is closed by the test to let the step finish.
	Block chan struct{}
}

// Backend is a fake runner.Backend. Unscripted commands succeed with empty
// output.
type Backend struct {
	mu       sync.Mutex
	scripts  map[string]StepScript
	starts   []Started
	restores []string

	open atomic.Int32
	peak atomic.Int32
}

// Started records one step execution for ordering assertions.
type Started struct {
	Command string
	At      time.Time
}

// NewBackend creates an empty fake backend.
func NewBackend() *Backend {
	return &Backend{scripts: make(map[string]StepScript)}
}

// Script sets the outcome for a command string.
func (b *Backend) Script(command string, s StepScript) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[command] = s
}

// Starts returns the recorded step executions in start order.
func (b *Backend) Starts() []Started {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Started, len(b.starts))
	copy(out, b.starts)
	return out
}

// StartedBefore reports whether every execution of a happened before any
// execution of b.
func (b *Backend) StartedBefore(cmdA, cmdB string) bool {
	var lastA, firstB time.Time
	for _, s := range b.Starts() {
		if s.Command == cmdA && s.At.After(lastA) {
			lastA = s.At
		}
		if s.Command == cmdB && (firstB.IsZero() || s.At.Before(firstB)) {
			firstB = s.At
		}
	}
	if firstB.IsZero() {
		return false
	}
	return lastA.Before(firstB)
}

// Restores returns the mount paths restored from cache into any context,
// in restore order.
func (b *Backend) Restores() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.restores))
	copy(out, b.restores)
	return out
}

// PeakConcurrency returns the highest number of simultaneously open
// execution contexts observed.
func (b *Backend) PeakConcurrency() int {
	return int(b.peak.Load())
}

// Open implements runner.Backend.
func (b *Backend) Open(_ context.Context, _ config.Environment) (runner.ExecutionContext, error) {
	n := b.open.Add(1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return &fakeContext{backend: b, caches: make(map[string][]byte)}, nil
}

type fakeContext struct {
	backend *Backend
	caches  map[string][]byte
}

func (c *fakeContext) RunStep(ctx context.Context, command string) (*runner.StepResult, error) {
	b := c.backend
	b.mu.Lock()
	script := b.scripts[command]
	b.starts = append(b.starts, Started{Command: command, At: time.Now()})
	b.mu.Unlock()

	if script.Block != nil {
		select {
		case <-script.Block:
		case <-ctx.Done():
			return &runner.StepResult{ExitCode: 130, Output: []byte("terminated")}, nil
		}
	}
	if script.Delay > 0 {
		select {
		case <-time.After(script.Delay):
		case <-ctx.Done():
			return &runner.StepResult{ExitCode: 130, Output: []byte("terminated")}, nil
		}
	}
	return &runner.StepResult{ExitCode: script.ExitCode, Output: []byte(script.Output)}, nil
}

func (c *fakeContext) RestoreCache(mountPath string, blob []byte) error {
	c.caches[mountPath] = blob
	c.backend.mu.Lock()
	c.backend.restores = append(c.backend.restores, mountPath)
	c.backend.mu.Unlock()
	return nil
}

func (c *fakeContext) CollectCache(mountPath string) ([]byte, error) {
	if blob, ok := c.caches[mountPath]; ok {
		return blob, nil
	}
	return []byte("contents of " + mountPath), nil
}

func (c *fakeContext) Close() error {
	c.backend.open.Add(-1)
	return nil
}
