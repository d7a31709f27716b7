package config

import (
	"fmt"
	"strings"
)

// Environment kinds supported by the runner pool.
const (
	EnvKindOS        = "os"
	EnvKindContainer = "container"
)

// Environment describes where a job's steps execute: a bare OS runner class
// (e.g. "ubuntu-latest") or a container image reference.
type Environment struct {
	Kind string
	Ref  string
}

// Class returns the pool accounting key for this environment.
func (e Environment) Class() string {
	return e.Kind + ":" + e.Ref
}

// Step is a single shell command inside a job. CanFail marks a step whose
// non-zero exit does not fail the job.
type Step struct {
	Name    string
	Run     string
	CanFail bool
}

// MatrixAxis is one named dimension of variation. Axis declaration order is
// significant: it determines instance identifier suffixing.
type MatrixAxis struct {
	Name   string
	Values []string
}

// CacheMount declares a path inside the execution context restored from and
// persisted to the cache store. The key template may reference matrix axis
// values (${matrix.<axis>}) and lock-file digests (${checksum:<path>}).
type CacheMount struct {
	Path        string
	KeyTemplate string
}

// JobTemplate is the declarative definition of a job before matrix
// expansion. Immutable once loaded.
type JobTemplate struct {
	Name string

	// On lists trigger events this job reacts to. Empty means every event.
	On []string

	Env   Environment
	Steps []Step

	// DependsOn names other job templates. Each name fans out to every
	// instance expanded from that template.
	DependsOn []string

	Matrix []MatrixAxis

	// ContinueOnError reports a failing execution as succeeded for
	// downstream scheduling, degrading the aggregate pipeline status.
	ContinueOnError bool

	// AllowDependencyFailure makes the job eligible to run once all its
	// dependencies are terminal, regardless of their outcome.
	AllowDependencyFailure bool

	Caches []CacheMount
}

// Triggers reports whether the template reacts to the given event.
func (t *JobTemplate) Triggers(event string) bool {
	if len(t.On) == 0 {
		return true
	}
	for _, e := range t.On {
		if e == event {
			return true
		}
	}
	return false
}

// Model is the loaded pipeline document: the job templates plus runner pool
// sizing, independent of the source format.
type Model struct {
	Jobs []*JobTemplate

	// PoolSizes maps an environment class (Environment.Class) to its slot
	// count. Classes absent here fall back to the app-level default.
	PoolSizes map[string]int
}

// Validate checks structural invariants that hold for any format: unique
// job names, non-empty steps, and a known environment kind.
func (m *Model) Validate() error {
	seen := make(map[string]struct{}, len(m.Jobs))
	for _, job := range m.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job with empty name")
		}
		if _, dup := seen[job.Name]; dup {
			return fmt.Errorf("duplicate job name %q", job.Name)
		}
		seen[job.Name] = struct{}{}

		if len(job.Steps) == 0 {
			return fmt.Errorf("job %q has no steps", job.Name)
		}
		switch job.Env.Kind {
		case EnvKindOS, EnvKindContainer:
		default:
			return fmt.Errorf("job %q has unknown environment kind %q", job.Name, job.Env.Kind)
		}
		if strings.TrimSpace(job.Env.Ref) == "" {
			return fmt.Errorf("job %q has an empty environment reference", job.Name)
		}
	}
	return nil
}
