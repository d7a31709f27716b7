package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/fsutil"
)

// Loader implements config.Loader for .hcl pipeline documents.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates an HCL loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load parses every .hcl file under the given paths into one merged model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	model := &config.Model{PoolSizes: make(map[string]int)}
	for _, path := range paths {
		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("discovering pipeline files under %q: %w", path, err)
		}
		for _, file := range files {
			logger.Debug("Parsing pipeline file.", "file", file)
			if err := l.loadFile(file, model); err != nil {
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

func (l *Loader) loadFile(path string, model *config.Model) error {
	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("parsing %s: %w", path, diags)
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &schema); diags.HasErrors() {
		return fmt.Errorf("decoding %s: %w", path, diags)
	}

	for _, job := range schema.Jobs {
		tmpl, err := translateJob(job)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		model.Jobs = append(model.Jobs, tmpl)
	}
	if schema.RunnerPool != nil {
		for _, class := range schema.RunnerPool.Classes {
			model.PoolSizes[class.Name] = class.Slots
		}
	}
	return nil
}
