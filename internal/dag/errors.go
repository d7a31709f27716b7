package dag

import (
	"fmt"
	"strings"
)

// UnknownDependencyError reports a dependency name that resolves to no job
// template in the pipeline.
type UnknownDependencyError struct {
	Instance   string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("instance %q depends on unknown job %q", e.Instance, e.Dependency)
}

// CycleError reports a dependency cycle. Path holds the instance identifiers
// on the cycle, in traversal order, first node repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}
