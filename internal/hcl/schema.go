package hcl

import "github.com/hashicorp/hcl/v2"

// fileSchema is the top-level structure of a pipeline document.
type fileSchema struct {
	Jobs       []*jobSchema      `hcl:"job,block"`
	RunnerPool *runnerPoolSchema `hcl:"runner_pool,block"`
}

// runnerPoolSchema sizes the runner pool per environment class.
type runnerPoolSchema struct {
	Classes []*classSchema `hcl:"class,block"`
}

type classSchema struct {
	Name  string `hcl:"name,label"`
	Slots int    `hcl:"slots"`
}

// jobSchema is a `job` block: one job template before matrix expansion.
// Exactly one of runs_on (bare OS class) or image (container) must be set.
//
// Fields that may interpolate ${matrix.<axis>} or call checksum() stay
// hcl.Expression so they evaluate against the placeholder context instead of
// failing native HCL template evaluation.
type jobSchema struct {
	Name                   string         `hcl:"name,label"`
	On                     []string       `hcl:"on,optional"`
	RunsOn                 hcl.Expression `hcl:"runs_on,optional"`
	Image                  hcl.Expression `hcl:"image,optional"`
	DependsOn              []string       `hcl:"depends_on,optional"`
	ContinueOnError        bool           `hcl:"continue_on_error,optional"`
	AllowDependencyFailure bool           `hcl:"allow_dependency_failure,optional"`
	Axes                   []*axisSchema  `hcl:"axis,block"`
	Steps                  []*stepSchema  `hcl:"step,block"`
	Caches                 []*cacheSchema `hcl:"cache,block"`
}

// axisSchema is an `axis` block. Block order in the document is the axis
// declaration order the expander preserves. Values stay an expression here
// so numbers and strings both translate cleanly.
type axisSchema struct {
	Name   string         `hcl:"name,label"`
	Values hcl.Expression `hcl:"values"`
}

type stepSchema struct {
	Name    string         `hcl:"name,label"`
	Run     hcl.Expression `hcl:"run"`
	CanFail bool           `hcl:"can_fail,optional"`
}

type cacheSchema struct {
	Path string         `hcl:"path,label"`
	Key  hcl.Expression `hcl:"key"`
}
