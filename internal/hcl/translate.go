package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/pipewright/internal/config"
)

// translateJob converts an HCL job block into the agnostic template. Axes
// translate first so the evaluation context for the remaining fields knows
// which ${matrix.<axis>} references are legal.
func translateJob(s *jobSchema) (*config.JobTemplate, error) {
	tmpl := &config.JobTemplate{
		Name:                   s.Name,
		On:                     s.On,
		DependsOn:              s.DependsOn,
		ContinueOnError:        s.ContinueOnError,
		AllowDependencyFailure: s.AllowDependencyFailure,
	}

	for _, axis := range s.Axes {
		values, err := translateAxisValues(axis)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", s.Name, err)
		}
		tmpl.Matrix = append(tmpl.Matrix, config.MatrixAxis{Name: axis.Name, Values: values})
	}

	evalCtx := placeholderContext(tmpl.Matrix)

	env, err := translateEnvironment(s, evalCtx)
	if err != nil {
		return nil, err
	}
	tmpl.Env = env

	for _, step := range s.Steps {
		run, err := evalString(step.Run, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("job %q: step %q: %w", s.Name, step.Name, err)
		}
		tmpl.Steps = append(tmpl.Steps, config.Step{Name: step.Name, Run: run, CanFail: step.CanFail})
	}
	for _, mount := range s.Caches {
		key, err := evalString(mount.Key, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("job %q: cache %q: %w", s.Name, mount.Path, err)
		}
		tmpl.Caches = append(tmpl.Caches, config.CacheMount{Path: mount.Path, KeyTemplate: key})
	}
	return tmpl, nil
}

func translateEnvironment(s *jobSchema, evalCtx *hcl.EvalContext) (config.Environment, error) {
	runsOn, err := evalString(s.RunsOn, evalCtx)
	if err != nil {
		return config.Environment{}, fmt.Errorf("job %q: runs_on: %w", s.Name, err)
	}
	image, err := evalString(s.Image, evalCtx)
	if err != nil {
		return config.Environment{}, fmt.Errorf("job %q: image: %w", s.Name, err)
	}

	switch {
	case runsOn != "" && image != "":
		return config.Environment{}, fmt.Errorf("job %q declares both runs_on and image", s.Name)
	case image != "":
		return config.Environment{Kind: config.EnvKindContainer, Ref: image}, nil
	case runsOn != "":
		return config.Environment{Kind: config.EnvKindOS, Ref: runsOn}, nil
	default:
		return config.Environment{}, fmt.Errorf("job %q declares neither runs_on nor image", s.Name)
	}
}

// placeholderContext builds the evaluation context for interpolated fields.
// Resolution is deferred, not performed: ${matrix.<axis>} renders back to
// the literal placeholder the expander substitutes per instance, and
// checksum("f") renders the token the cache layer resolves at execution
// time. A reference to an undeclared axis fails evaluation here, at load.
func placeholderContext(axes []config.MatrixAxis) *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	if len(axes) > 0 {
		attrs := make(map[string]cty.Value, len(axes))
		for _, axis := range axes {
			attrs[axis.Name] = cty.StringVal("${matrix." + axis.Name + "}")
		}
		vars["matrix"] = cty.ObjectVal(attrs)
	}
	return &hcl.EvalContext{
		Variables: vars,
		Functions: map[string]function.Function{"checksum": checksumFunc},
	}
}

var checksumFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "path", Type: cty.String}},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal("${checksum:" + args[0].AsString() + "}"), nil
	},
})

// evalString evaluates an optional string attribute. A nil expression (the
// attribute was absent) yields "".
func evalString(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, error) {
	if expr == nil {
		return "", nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	if val.IsNull() {
		return "", nil
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("value is not a string: %w", err)
	}
	return str.AsString(), nil
}

// translateAxisValues statically evaluates an axis value list. Elements are
// converted to strings, so `values = [1, 2]` and `values = ["1", "2"]` are
// equivalent.
func translateAxisValues(axis *axisSchema) ([]string, error) {
	val, diags := axis.Values.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("axis %q: evaluating values: %w", axis.Name, diags)
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("axis %q: values must be a list", axis.Name)
	}

	var values []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		str, err := convert.Convert(elem, cty.String)
		if err != nil {
			return nil, fmt.Errorf("axis %q: value %s is not convertible to string: %w",
				axis.Name, elem.Type().FriendlyName(), err)
		}
		if str.IsNull() {
			return nil, fmt.Errorf("axis %q: null value", axis.Name)
		}
		values = append(values, str.AsString())
	}
	return values, nil
}
