// Package scheduler walks the validated DAG and drives every job instance
// to a terminal state.
//
// All state lives in a single event loop: execution goroutines never touch
// instance state, they only report over the events channel. Readiness is
// re-evaluated after every terminal transition, so concurrent completions
// cannot race on the ready-set.
package scheduler

import (
	"context"
	"time"

	"github.com/vk/pipewright/internal/cache"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/dag"
	"github.com/vk/pipewright/internal/runner"
)

// Options wires the scheduler's collaborators.
type Options struct {
	Pool  *runner.Pool
	Cache cache.Store

	// Workdir is the workspace root used to resolve checksum tokens in
	// cache keys.
	Workdir string

	// LogDir, when set, receives one <instance-id>.log file per executed
	// instance. The Result carries the path.
	LogDir string

	// OnTransition, when set, is called from the event loop for every state
	// change. Must not block.
	OnTransition func(id string, state State)
}

// Result is the terminal record of one instance.
type Result struct {
	ID    string
	State State

	// Tolerated is set when the instance failed but its template carries
	// continue-on-error: the state reads Succeeded for DAG propagation and
	// the pipeline aggregate is degraded instead.
	Tolerated bool

	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
	LogPath    string
}

// event kinds flowing from execution goroutines into the loop.
type eventKind uint8

const (
	evStarted eventKind = iota
	evFinished
)

type event struct {
	kind eventKind
	idx  int
	res  Result
}

// Scheduler runs one graph to quiescence. Not reusable.
type Scheduler struct {
	graph  *dag.Graph
	opts   Options
	states []State
	events chan event
}

// New creates a scheduler for the graph.
func New(graph *dag.Graph, opts Options) *Scheduler {
	return &Scheduler{
		graph:  graph,
		opts:   opts,
		states: make([]State, graph.Len()),
		// Each instance emits at most one started and one finished event,
		// so the loop can dispatch without ever blocking a sender.
		events: make(chan event, graph.Len()*2),
	}
}

// Run executes the graph until every instance is terminal and returns the
// full per-instance result table, indexed like the graph arena. Cancelling
// ctx terminates running steps, skips everything not yet dispatched, and
// still returns the complete table.
func (s *Scheduler) Run(ctx context.Context) []Result {
	logger := ctxlog.FromContext(ctx)
	n := s.graph.Len()
	results := make([]Result, n)
	if n == 0 {
		return results
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	remaining := n

	dispatch := func(i int) {
		s.transition(i, Ready)
		go s.execute(runCtx, i)
	}

	// finish records a terminal transition and re-evaluates dependents.
	// Declared before use so skip propagation can recurse.
	var finish func(i int, res Result)

	evaluate := func(d int) {
		if s.states[d] != Pending {
			return
		}
		allTerminal := true
		badDep := -1
		for _, dep := range s.graph.Deps(d) {
			st := s.states[dep]
			if !st.Terminal() {
				allTerminal = false
			}
			if st == Failed || st == Skipped {
				badDep = dep
			}
		}
		tmpl := s.graph.Instance(d).Template
		switch {
		case badDep >= 0 && !tmpl.AllowDependencyFailure:
			// Strict dependents skip as soon as any upstream fails;
			// the skip propagates transitively through finish.
			finish(d, Result{
				ID:    s.graph.Instance(d).ID,
				State: Skipped,
				Err: &UpstreamFailureError{
					Instance:   s.graph.Instance(d).ID,
					Dependency: s.graph.Instance(badDep).ID,
				},
			})
		case allTerminal:
			dispatch(d)
		}
	}

	finish = func(i int, res Result) {
		results[i] = res
		s.transition(i, res.State)
		remaining--
		for _, d := range s.graph.Dependents(i) {
			evaluate(d)
		}
	}

	roots := 0
	for i := 0; i < n; i++ {
		if len(s.graph.Deps(i)) == 0 {
			dispatch(i)
			roots++
		}
	}
	logger.Debug("Scheduler started.", "instances", n, "roots", roots)

	done := ctx.Done()
	for remaining > 0 {
		select {
		case ev := <-s.events:
			switch ev.kind {
			case evStarted:
				if s.states[ev.idx] == Ready {
					s.transition(ev.idx, Running)
				}
			case evFinished:
				finish(ev.idx, ev.res)
			}
		case <-done:
			done = nil
			cancel()
			logger.Warn("Run cancelled; skipping undispatched instances.")
			for i := 0; i < n; i++ {
				if s.states[i] == Pending {
					finish(i, Result{
						ID:    s.graph.Instance(i).ID,
						State: Skipped,
						Err:   ctx.Err(),
					})
				}
			}
		}
	}
	logger.Debug("Scheduler quiescent.")
	return results
}

func (s *Scheduler) transition(i int, st State) {
	s.states[i] = st
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(s.graph.Instance(i).ID, st)
	}
}
