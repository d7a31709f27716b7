// Package yamlcfg provides the YAML implementation of the pipeline document
// loader. Matrix axes are decoded through yaml.Node so their document order
// survives into the model — axis declaration order drives instance naming.
package yamlcfg

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/fsutil"
)

// fileDoc is the top-level YAML document shape.
type fileDoc struct {
	RunnerPool map[string]int `yaml:"runner_pool"`
	Jobs       yaml.Node      `yaml:"jobs"`
}

// jobDoc is one job template. Matrix and cache stay raw nodes: both are
// mappings whose declaration order matters (matrix) or whose values are
// plain strings (cache).
type jobDoc struct {
	On                     []string  `yaml:"on"`
	RunsOn                 string    `yaml:"runs_on"`
	Image                  string    `yaml:"image"`
	DependsOn              []string  `yaml:"depends_on"`
	ContinueOnError        bool      `yaml:"continue_on_error"`
	AllowDependencyFailure bool      `yaml:"allow_dependency_failure"`
	Matrix                 yaml.Node `yaml:"matrix"`
	Steps                  []stepDoc `yaml:"steps"`
	Cache                  yaml.Node `yaml:"cache"`
}

type stepDoc struct {
	Name    string `yaml:"name"`
	Run     string `yaml:"run"`
	CanFail bool   `yaml:"can_fail"`
}

// Loader implements config.Loader for .yaml pipeline documents.
type Loader struct{}

// NewLoader creates a YAML loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .yaml file under the given paths into one merged model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	model := &config.Model{PoolSizes: make(map[string]int)}
	for _, path := range paths {
		files, err := fsutil.FindFilesByExtension(path, ".yaml")
		if err != nil {
			return nil, fmt.Errorf("discovering pipeline files under %q: %w", path, err)
		}
		for _, file := range files {
			logger.Debug("Parsing pipeline file.", "file", file)
			if err := loadFile(file, model); err != nil {
				return nil, err
			}
		}
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}
	logger.Debug("Pipeline model loaded.", "jobs", len(model.Jobs))
	return model, nil
}

func loadFile(path string, model *config.Model) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for class, slots := range doc.RunnerPool {
		model.PoolSizes[class] = slots
	}

	if doc.Jobs.Kind == 0 {
		return nil
	}
	if doc.Jobs.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: jobs must be a mapping", path)
	}
	// A mapping node's Content alternates key, value — iterating it keeps
	// document order.
	for i := 0; i+1 < len(doc.Jobs.Content); i += 2 {
		name := doc.Jobs.Content[i].Value
		var job jobDoc
		if err := doc.Jobs.Content[i+1].Decode(&job); err != nil {
			return fmt.Errorf("%s: job %q: %w", path, name, err)
		}
		tmpl, err := translateJob(name, &job)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		model.Jobs = append(model.Jobs, tmpl)
	}
	return nil
}

func translateJob(name string, doc *jobDoc) (*config.JobTemplate, error) {
	var env config.Environment
	switch {
	case doc.RunsOn != "" && doc.Image != "":
		return nil, fmt.Errorf("job %q declares both runs_on and image", name)
	case doc.Image != "":
		env = config.Environment{Kind: config.EnvKindContainer, Ref: doc.Image}
	case doc.RunsOn != "":
		env = config.Environment{Kind: config.EnvKindOS, Ref: doc.RunsOn}
	default:
		return nil, fmt.Errorf("job %q declares neither runs_on nor image", name)
	}

	tmpl := &config.JobTemplate{
		Name:                   name,
		On:                     doc.On,
		Env:                    env,
		DependsOn:              doc.DependsOn,
		ContinueOnError:        doc.ContinueOnError,
		AllowDependencyFailure: doc.AllowDependencyFailure,
	}

	axes, err := translateMatrix(name, &doc.Matrix)
	if err != nil {
		return nil, err
	}
	tmpl.Matrix = axes

	for _, step := range doc.Steps {
		tmpl.Steps = append(tmpl.Steps, config.Step{Name: step.Name, Run: step.Run, CanFail: step.CanFail})
	}

	caches, err := translateCache(name, &doc.Cache)
	if err != nil {
		return nil, err
	}
	tmpl.Caches = caches

	return tmpl, nil
}

// translateMatrix walks the matrix mapping node pairwise, keeping axis
// declaration order. Scalar values are taken as their raw text so `[1, 2]`
// and `["1", "2"]` read the same.
func translateMatrix(job string, node *yaml.Node) ([]config.MatrixAxis, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("job %q: matrix must be a mapping", job)
	}

	var axes []config.MatrixAxis
	for i := 0; i+1 < len(node.Content); i += 2 {
		axisName := node.Content[i].Value
		valuesNode := node.Content[i+1]
		if valuesNode.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("job %q: matrix axis %q must be a sequence", job, axisName)
		}
		axis := config.MatrixAxis{Name: axisName}
		for _, v := range valuesNode.Content {
			if v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("job %q: matrix axis %q has a non-scalar value", job, axisName)
			}
			axis.Values = append(axis.Values, v.Value)
		}
		axes = append(axes, axis)
	}
	return axes, nil
}

func translateCache(job string, node *yaml.Node) ([]config.CacheMount, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("job %q: cache must be a mapping of path to key", job)
	}

	var mounts []config.CacheMount
	for i := 0; i+1 < len(node.Content); i += 2 {
		mounts = append(mounts, config.CacheMount{
			Path:        node.Content[i].Value,
			KeyTemplate: node.Content[i+1].Value,
		})
	}
	return mounts, nil
}
