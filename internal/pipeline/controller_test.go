package pipeline_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vk/pipewright/internal/cache"
	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/dag"
	"github.com/vk/pipewright/internal/matrix"
	"github.com/vk/pipewright/internal/pipeline"
	"github.com/vk/pipewright/internal/runner"
	"github.com/vk/pipewright/internal/runner/runnertest"
	"github.com/vk/pipewright/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func job(name, cmd string, deps ...string) *config.JobTemplate {
	return &config.JobTemplate{
		Name:      name,
		Env:       config.Environment{Kind: config.EnvKindOS, Ref: "test"},
		Steps:     []config.Step{{Name: "main", Run: cmd}},
		DependsOn: deps,
	}
}

func newController(backend runner.Backend, jobs ...*config.JobTemplate) *pipeline.Controller {
	model := &config.Model{Jobs: jobs}
	return pipeline.NewController(model, scheduler.Options{
		Pool: runner.NewPool(runner.PoolOptions{
			Backends:     map[string]runner.Backend{config.EnvKindOS: backend},
			DefaultSlots: 4,
		}),
		Cache: cache.NewMemoryStore(),
	})
}

type capturingNotifier struct {
	reports []*pipeline.Report
}

func (n *capturingNotifier) Notify(_ context.Context, report *pipeline.Report) error {
	n.reports = append(n.reports, report)
	return nil
}

func rowsByID(report *pipeline.Report) map[string]pipeline.InstanceReport {
	out := make(map[string]pipeline.InstanceReport, len(report.Instances))
	for _, row := range report.Instances {
		out[row.ID] = row
	}
	return out
}

func TestRun_Success(t *testing.T) {
	backend := runnertest.NewBackend()
	c := newController(backend, job("build", "run-build"), job("test", "run-test", "build"))

	report, err := c.Run(context.Background(), "push")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusSuccess, report.Status)
	assert.Equal(t, "push", report.Trigger)
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	rows := rowsByID(report)
	require.Len(t, rows, 2)
	assert.Equal(t, "succeeded", rows["build"].State)
	assert.Equal(t, "succeeded", rows["test"].State)
}

func TestRun_DegradedOnToleratedFailure(t *testing.T) {
	backend := runnertest.NewBackend()
	backend.Script("run-flaky", runnertest.StepScript{ExitCode: 1})

	flaky := job("flaky", "run-flaky")
	flaky.ContinueOnError = true
	c := newController(backend, flaky, job("after", "run-after", "flaky"))

	report, err := c.Run(context.Background(), "push")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusDegraded, report.Status)
	rows := rowsByID(report)
	assert.Equal(t, "succeeded", rows["flaky"].State)
	assert.True(t, rows["flaky"].Tolerated)
	assert.NotEmpty(t, rows["flaky"].Error)
	assert.Equal(t, "succeeded", rows["after"].State)
}

func TestRun_FailedProducesFullTable(t *testing.T) {
	backend := runnertest.NewBackend()
	backend.Script("run-build", runnertest.StepScript{ExitCode: 2})

	c := newController(backend,
		job("build", "run-build"),
		job("test", "run-test", "build"),
		job("lint", "run-lint"),
	)

	report, err := c.Run(context.Background(), "push")
	require.NoError(t, err)

	// Execution failures land in the report, not the error.
	assert.Equal(t, pipeline.StatusFailed, report.Status)
	rows := rowsByID(report)
	require.Len(t, rows, 3)
	assert.Equal(t, "failed", rows["build"].State)
	assert.Equal(t, "skipped", rows["test"].State)
	assert.Equal(t, "succeeded", rows["lint"].State)
}

func TestRun_SkipAloneFailsTheAggregate(t *testing.T) {
	backend := runnertest.NewBackend()
	backend.Script("run-a", runnertest.StepScript{ExitCode: 1})

	a := job("a", "run-a")
	a.ContinueOnError = true
	// b fails strictly, so c is skipped and the aggregate cannot be
	// degraded even though a's failure was tolerated.
	backend.Script("run-b", runnertest.StepScript{ExitCode: 1})
	c := newController(backend, a, job("b", "run-b"), job("c", "run-c", "b"))

	report, err := c.Run(context.Background(), "push")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, report.Status)
}

func TestRun_TriggerFiltering(t *testing.T) {
	backend := runnertest.NewBackend()

	build := job("build", "run-build")
	build.On = []string{"push", "pull_request"}
	deploy := job("deploy", "run-deploy")
	deploy.On = []string{"deploy"}
	always := job("always", "run-always")

	c := newController(backend, build, deploy, always)

	report, err := c.Run(context.Background(), "push")
	require.NoError(t, err)

	rows := rowsByID(report)
	require.Len(t, rows, 2)
	assert.Contains(t, rows, "build")
	assert.Contains(t, rows, "always")
	assert.NotContains(t, rows, "deploy")

	for _, s := range backend.Starts() {
		assert.NotEqual(t, "run-deploy", s.Command)
	}
}

func TestRun_MatrixExpansionInReport(t *testing.T) {
	backend := runnertest.NewBackend()

	test := job("test", "test-${matrix.feature}")
	test.Matrix = []config.MatrixAxis{{Name: "feature", Values: []string{"default", "full"}}}
	c := newController(backend, test)

	report, err := c.Run(context.Background(), "push")
	require.NoError(t, err)

	rows := rowsByID(report)
	require.Len(t, rows, 2)
	assert.Contains(t, rows, "test-default")
	assert.Contains(t, rows, "test-full")
}

func TestRun_ConstructionErrorsAbortBeforeExecution(t *testing.T) {
	t.Run("unknown dependency", func(t *testing.T) {
		backend := runnertest.NewBackend()
		c := newController(backend, job("a", "run-a", "ghost"))

		_, err := c.Run(context.Background(), "push")
		var depErr *dag.UnknownDependencyError
		require.ErrorAs(t, err, &depErr)
		assert.Empty(t, backend.Starts())
	})

	t.Run("cycle", func(t *testing.T) {
		backend := runnertest.NewBackend()
		c := newController(backend, job("a", "run-a", "b"), job("b", "run-b", "a"))

		_, err := c.Run(context.Background(), "push")
		var cycleErr *dag.CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Empty(t, backend.Starts())
	})

	t.Run("empty matrix axis", func(t *testing.T) {
		backend := runnertest.NewBackend()
		tmpl := job("a", "run-a")
		tmpl.Matrix = []config.MatrixAxis{{Name: "feature"}}
		c := newController(backend, tmpl)

		_, err := c.Run(context.Background(), "push")
		var axisErr *matrix.EmptyAxisError
		require.ErrorAs(t, err, &axisErr)
		assert.Empty(t, backend.Starts())
	})
}

func TestRun_NotifiesWithFinalReport(t *testing.T) {
	backend := runnertest.NewBackend()
	notifier := &capturingNotifier{}

	model := &config.Model{Jobs: []*config.JobTemplate{job("build", "run-build")}}
	c := pipeline.NewController(model, scheduler.Options{
		Pool: runner.NewPool(runner.PoolOptions{
			Backends:     map[string]runner.Backend{config.EnvKindOS: backend},
			DefaultSlots: 1,
		}),
	}, notifier)

	report, err := c.Run(context.Background(), "push")
	require.NoError(t, err)

	require.Len(t, notifier.reports, 1)
	assert.Equal(t, report, notifier.reports[0])
}
