// Package matrix materializes job templates into concrete job instances by
// expanding the cartesian product of their matrix axes.
package matrix

import (
	"fmt"
	"strings"

	"github.com/vk/pipewright/internal/config"
)

// EmptyAxisError reports a matrix axis declared with no values.
type EmptyAxisError struct {
	Template string
	Axis     string
}

func (e *EmptyAxisError) Error() string {
	return fmt.Sprintf("job %q: matrix axis %q has no values", e.Template, e.Axis)
}

// Instance is one concrete, schedulable unit produced by expansion. Its
// environment, steps and cache key templates carry the axis values already
// substituted; checksum tokens stay unresolved until execution time.
type Instance struct {
	ID       string
	Template *config.JobTemplate

	// Values is the axis assignment that produced this instance. Empty for
	// templates without a matrix.
	Values map[string]string

	Env    config.Environment
	Steps  []config.Step
	Caches []config.CacheMount
}

// Expand produces one Instance per assignment in the cartesian product of
// the template's axes, in axis declaration order then value order. A
// template with no axes yields exactly one instance named after the
// template.
func Expand(tmpl *config.JobTemplate) ([]*Instance, error) {
	for _, axis := range tmpl.Matrix {
		if len(axis.Values) == 0 {
			return nil, &EmptyAxisError{Template: tmpl.Name, Axis: axis.Name}
		}
	}

	assignments := cartesian(tmpl.Matrix)
	instances := make([]*Instance, 0, len(assignments))
	for _, values := range assignments {
		instances = append(instances, materialize(tmpl, values))
	}
	return instances, nil
}

// ExpandAll expands every template, keeping template order and returning the
// flat instance list.
func ExpandAll(templates []*config.JobTemplate) ([]*Instance, error) {
	var all []*Instance
	for _, tmpl := range templates {
		instances, err := Expand(tmpl)
		if err != nil {
			return nil, err
		}
		all = append(all, instances...)
	}
	return all, nil
}

// Substitute replaces ${matrix.<axis>} placeholders with the assignment's
// values. Unknown placeholders are left intact for later stages (e.g.
// checksum tokens in cache keys).
func Substitute(s string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(s, "${") {
		return s
	}
	oldnew := make([]string, 0, len(values)*2)
	for axis, value := range values {
		oldnew = append(oldnew, "${matrix."+axis+"}", value)
	}
	return strings.NewReplacer(oldnew...).Replace(s)
}

// cartesian enumerates all axis-value assignments. The rightmost axis varies
// fastest, so the first axis's first value leads the ordering. A template
// with no axes yields the single empty assignment.
func cartesian(axes []config.MatrixAxis) []map[string]string {
	assignments := []map[string]string{{}}
	for _, axis := range axes {
		next := make([]map[string]string, 0, len(assignments)*len(axis.Values))
		for _, partial := range assignments {
			for _, value := range axis.Values {
				assignment := make(map[string]string, len(partial)+1)
				for k, v := range partial {
					assignment[k] = v
				}
				assignment[axis.Name] = value
				next = append(next, assignment)
			}
		}
		assignments = next
	}
	return assignments
}

// materialize builds the concrete instance for one assignment, substituting
// axis values into the environment, steps and cache key templates.
func materialize(tmpl *config.JobTemplate, values map[string]string) *Instance {
	id := tmpl.Name
	for _, axis := range tmpl.Matrix {
		id += "-" + values[axis.Name]
	}

	steps := make([]config.Step, len(tmpl.Steps))
	for i, step := range tmpl.Steps {
		steps[i] = config.Step{
			Name:    Substitute(step.Name, values),
			Run:     Substitute(step.Run, values),
			CanFail: step.CanFail,
		}
	}

	caches := make([]config.CacheMount, len(tmpl.Caches))
	for i, mount := range tmpl.Caches {
		caches[i] = config.CacheMount{
			Path:        Substitute(mount.Path, values),
			KeyTemplate: Substitute(mount.KeyTemplate, values),
		}
	}

	return &Instance{
		ID:       id,
		Template: tmpl,
		Values:   values,
		Env: config.Environment{
			Kind: tmpl.Env.Kind,
			Ref:  Substitute(tmpl.Env.Ref, values),
		},
		Steps:  steps,
		Caches: caches,
	}
}
