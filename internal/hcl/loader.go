package hcl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/phasegrid/internal/config"
	"github.com/vk/phasegrid/internal/ctxlog"
	"github.com/vk/phasegrid/internal/fsutil"
)

// Loader implements config.Loader for .hcl pipeline files.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileSchema is the HCL shape of one pipeline file.
type fileSchema struct {
	Flow   *flowSchema   `hcl:"flow,block"`
	Stages []stageSchema `hcl:"stage,block"`
}

type flowSchema struct {
	Name    string `hcl:"name,label"`
	Timeout string `hcl:"timeout,optional"`
}

type stageSchema struct {
	Name       string           `hcl:"name,label"`
	Callback   string           `hcl:"callback"`
	Partitions int              `hcl:"partitions,optional"`
	Converge   bool             `hcl:"converge,optional"`
	Accumulate bool             `hcl:"accumulate,optional"`
	Next       string           `hcl:"next,optional"`
	Timeout    string           `hcl:"timeout,optional"`
	Arguments  *argumentsSchema `hcl:"arguments,block"`
}

// argumentsSchema captures the free-form arguments block; its attributes
// are evaluated and bound later against the callback's expectations.
type argumentsSchema struct {
	Body hcl.Body `hcl:",remain"`
}

// Load implements config.Loader. Each path may be a single .hcl file or a
// directory searched recursively; all stage blocks are merged into one
// model, and exactly one flow block must be present across the set.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("pipeline path %q: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("scanning %q: %w", path, err)
			}
			files = append(files, found...)
		} else {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl pipeline files found in %v", paths)
	}
	logger.Debug("Loading pipeline definition.", "files", files)

	model := &config.Model{}
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", file, diags)
		}

		var parsed fileSchema
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %s: %w", file, diags)
		}

		if parsed.Flow != nil {
			if model.Flow != nil {
				return nil, fmt.Errorf("%s: duplicate flow block (already defined as %q)", file, model.Flow.Name)
			}
			flow, err := translateFlow(parsed.Flow)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Flow = flow
		}

		for i := range parsed.Stages {
			stage, err := translateStage(&parsed.Stages[i])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Stages = append(model.Stages, stage)
		}
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Pipeline definition loaded.", "flow", model.Flow.Name, "stages", len(model.Stages))
	return model, nil
}

// translateFlow converts the HCL flow schema into the agnostic model.
func translateFlow(f *flowSchema) (*config.Flow, error) {
	timeout, err := parseTimeout(f.Timeout)
	if err != nil {
		return nil, fmt.Errorf("flow %q: %w", f.Name, err)
	}
	return &config.Flow{Name: f.Name, Timeout: timeout}, nil
}

// translateStage converts one HCL stage schema into the agnostic model,
// evaluating its argument expressions into plain Go values.
func translateStage(s *stageSchema) (*config.Stage, error) {
	timeout, err := parseTimeout(s.Timeout)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", s.Name, err)
	}

	partitions := s.Partitions
	if partitions == 0 {
		partitions = 1
	}

	args := map[string]any{}
	if s.Arguments != nil {
		attrs, diags := s.Arguments.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("stage %q arguments: %w", s.Name, diags)
		}
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("stage %q argument %q: %w", s.Name, name, diags)
			}
			goVal, err := ctyToGo(val)
			if err != nil {
				return nil, fmt.Errorf("stage %q argument %q: %w", s.Name, name, err)
			}
			args[name] = goVal
		}
	}

	return &config.Stage{
		Name:       s.Name,
		Callback:   s.Callback,
		Partitions: partitions,
		Converge:   s.Converge,
		Accumulate: s.Accumulate,
		Next:       s.Next,
		Timeout:    timeout,
		Arguments:  args,
	}, nil
}

func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", raw)
	}
	return d, nil
}
