package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validJob(name string) *JobTemplate {
	return &JobTemplate{
		Name:  name,
		Env:   Environment{Kind: EnvKindOS, Ref: "ubuntu-latest"},
		Steps: []Step{{Name: "s", Run: "true"}},
	}
}

func TestModel_Validate(t *testing.T) {
	t.Run("accepts a well-formed model", func(t *testing.T) {
		m := &Model{Jobs: []*JobTemplate{validJob("a"), validJob("b")}}
		assert.NoError(t, m.Validate())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		m := &Model{Jobs: []*JobTemplate{validJob("a"), validJob("a")}}
		err := m.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("rejects empty steps", func(t *testing.T) {
		job := validJob("a")
		job.Steps = nil
		err := (&Model{Jobs: []*JobTemplate{job}}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no steps")
	})

	t.Run("rejects unknown environment kind", func(t *testing.T) {
		job := validJob("a")
		job.Env.Kind = "vm"
		err := (&Model{Jobs: []*JobTemplate{job}}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown environment kind")
	})

	t.Run("rejects blank environment ref", func(t *testing.T) {
		job := validJob("a")
		job.Env.Ref = "  "
		err := (&Model{Jobs: []*JobTemplate{job}}).Validate()
		require.Error(t, err)
	})
}

func TestJobTemplate_Triggers(t *testing.T) {
	job := validJob("a")
	assert.True(t, job.Triggers("push"), "empty On matches every event")

	job.On = []string{"push", "pull_request"}
	assert.True(t, job.Triggers("pull_request"))
	assert.False(t, job.Triggers("deploy"))
}

func TestEnvironment_Class(t *testing.T) {
	env := Environment{Kind: EnvKindContainer, Ref: "golang:1.24"}
	assert.Equal(t, "container:golang:1.24", env.Class())
}
