package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/runner"
	"github.com/vk/pipewright/internal/runner/runnertest"
)

func osEnv(ref string) config.Environment {
	return config.Environment{Kind: config.EnvKindOS, Ref: ref}
}

func TestPool_UnknownBackendKind(t *testing.T) {
	pool := runner.NewPool(runner.PoolOptions{
		Backends: map[string]runner.Backend{config.EnvKindOS: runnertest.NewBackend()},
	})

	_, err := pool.Acquire(context.Background(), config.Environment{Kind: "exotic", Ref: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exotic")
}

func TestPool_AcquireTimeout(t *testing.T) {
	pool := runner.NewPool(runner.PoolOptions{
		Backends:       map[string]runner.Backend{config.EnvKindOS: runnertest.NewBackend()},
		DefaultSlots:   1,
		AcquireTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	lease, err := pool.Acquire(ctx, osEnv("ubuntu"))
	require.NoError(t, err)

	// The single slot is held, so the second acquisition must time out.
	_, err = pool.Acquire(ctx, osEnv("ubuntu"))
	require.ErrorIs(t, err, runner.ErrAcquireTimeout)

	lease.Release()

	lease, err = pool.Acquire(ctx, osEnv("ubuntu"))
	require.NoError(t, err)
	lease.Release()
}

func TestPool_ClassesAreIndependent(t *testing.T) {
	pool := runner.NewPool(runner.PoolOptions{
		Backends:       map[string]runner.Backend{config.EnvKindOS: runnertest.NewBackend()},
		Sizes:          map[string]int{"os:small": 1},
		DefaultSlots:   1,
		AcquireTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	small, err := pool.Acquire(ctx, osEnv("small"))
	require.NoError(t, err)
	defer small.Release()

	// Saturating one class leaves the others untouched.
	big, err := pool.Acquire(ctx, osEnv("big"))
	require.NoError(t, err)
	big.Release()
}

func TestPool_CancelledAcquire(t *testing.T) {
	pool := runner.NewPool(runner.PoolOptions{
		Backends:     map[string]runner.Backend{config.EnvKindOS: runnertest.NewBackend()},
		DefaultSlots: 1,
	})

	lease, err := pool.Acquire(context.Background(), osEnv("ubuntu"))
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx, osEnv("ubuntu"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	backend := runnertest.NewBackend()
	pool := runner.NewPool(runner.PoolOptions{
		Backends:     map[string]runner.Backend{config.EnvKindOS: backend},
		DefaultSlots: 2,
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := pool.Acquire(ctx, osEnv("ubuntu"))
			assert.NoError(t, err)
			time.Sleep(10 * time.Millisecond)
			lease.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, backend.PeakConcurrency(), 2)
	assert.GreaterOrEqual(t, backend.PeakConcurrency(), 1)
}

func TestLease_ReleaseIsIdempotent(t *testing.T) {
	pool := runner.NewPool(runner.PoolOptions{
		Backends:       map[string]runner.Backend{config.EnvKindOS: runnertest.NewBackend()},
		DefaultSlots:   1,
		AcquireTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	lease, err := pool.Acquire(ctx, osEnv("ubuntu"))
	require.NoError(t, err)
	lease.Release()
	// A double release must not free a slot twice.
	lease.Release()

	first, err := pool.Acquire(ctx, osEnv("ubuntu"))
	require.NoError(t, err)
	defer first.Release()

	_, err = pool.Acquire(ctx, osEnv("ubuntu"))
	require.ErrorIs(t, err, runner.ErrAcquireTimeout)
}
