package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
)

// ErrAcquireTimeout is returned when no slot for the requested environment
// class frees up within the pool's acquire timeout. The scheduler fails the
// single affected instance and keeps the pipeline running.
var ErrAcquireTimeout = errors.New("timed out acquiring a runner slot")

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Backends maps an environment kind (config.EnvKindOS,
	// config.EnvKindContainer) to the backend that opens its contexts.
	Backends map[string]Backend

	// Sizes maps environment classes to slot counts; classes not listed
	// fall back to DefaultSlots.
	Sizes map[string]int

	// DefaultSlots bounds concurrency for classes without an explicit size.
	// Zero or negative means 1.
	DefaultSlots int

	// AcquireTimeout bounds how long Acquire waits for a free slot. Zero
	// means wait until the context is cancelled.
	AcquireTimeout time.Duration
}

// Pool hands out bounded, per-environment-class execution slots.
type Pool struct {
	opts PoolOptions

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewPool creates a pool. Slot semaphores are created lazily per class on
// first acquisition.
func NewPool(opts PoolOptions) *Pool {
	if opts.DefaultSlots <= 0 {
		opts.DefaultSlots = 1
	}
	return &Pool{
		opts:  opts,
		slots: make(map[string]chan struct{}),
	}
}

// Lease is an acquired slot bound to an open execution context. Release
// closes the context and frees the slot; it is safe to call once.
type Lease struct {
	Context ExecutionContext

	release func()
	once    sync.Once
}

// Release returns the slot to the pool.
func (l *Lease) Release() {
	l.once.Do(l.release)
}

// Acquire blocks until a slot for the environment's class is free, then
// opens an execution context from the matching backend. On timeout it
// returns ErrAcquireTimeout.
func (p *Pool) Acquire(ctx context.Context, env config.Environment) (*Lease, error) {
	backend, ok := p.opts.Backends[env.Kind]
	if !ok {
		return nil, fmt.Errorf("no runner backend for environment kind %q", env.Kind)
	}

	sem := p.semaphore(env.Class())

	var timeout <-chan time.Time
	if p.opts.AcquireTimeout > 0 {
		timer := time.NewTimer(p.opts.AcquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case sem <- struct{}{}:
	case <-timeout:
		return nil, fmt.Errorf("%w: class %q", ErrAcquireTimeout, env.Class())
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ec, err := backend.Open(ctx, env)
	if err != nil {
		<-sem
		return nil, fmt.Errorf("opening execution context for %q: %w", env.Class(), err)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Runner slot acquired.", "class", env.Class())

	return &Lease{
		Context: ec,
		release: func() {
			if err := ec.Close(); err != nil {
				logger.Warn("Closing execution context failed.", "class", env.Class(), "error", err)
			}
			<-sem
			logger.Debug("Runner slot released.", "class", env.Class())
		},
	}, nil
}

// semaphore returns the class's slot channel, creating it at the configured
// size on first use.
func (p *Pool) semaphore(class string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sem, ok := p.slots[class]; ok {
		return sem
	}
	size, ok := p.opts.Sizes[class]
	if !ok || size <= 0 {
		size = p.opts.DefaultSlots
	}
	sem := make(chan struct{}, size)
	p.slots[class] = sem
	return sem
}
