// Package hcldoc loads HCL workflow documents into the workflow model. It is
// the alternate syntax behind the same workflow.Loader interface the YAML
// loader implements; job block order in the file is preserved.
package hcldoc

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/workflow"
)

// Loader is the HCL implementation of workflow.Loader.
type Loader struct{}

// NewLoader creates a new HCL workflow loader.
func NewLoader() *Loader {
	return &Loader{}
}

type fileRoot struct {
	Workflow *workflowBlock `hcl:"workflow,block"`
	Jobs     []*jobBlock    `hcl:"job,block"`
}

type workflowBlock struct {
	Name string         `hcl:"name,optional"`
	Env  hcl.Expression `hcl:"env,optional"`
}

type jobBlock struct {
	ID        string          `hcl:"id,label"`
	Needs     []string        `hcl:"needs,optional"`
	Condition string          `hcl:"condition,optional"`
	Container *containerBlock `hcl:"container,block"`
	Services  []*serviceBlock `hcl:"service,block"`
	Steps     []*stepBlock    `hcl:"step,block"`
}

type containerBlock struct {
	Image      string         `hcl:"image"`
	Privileged bool           `hcl:"privileged,optional"`
	WorkDir    string         `hcl:"workdir,optional"`
	Env        hcl.Expression `hcl:"env,optional"`
	Mounts     []*mountBlock  `hcl:"mount,block"`
}

type serviceBlock struct {
	Name       string         `hcl:"name,label"`
	Image      string         `hcl:"image"`
	Privileged bool           `hcl:"privileged,optional"`
	WorkDir    string         `hcl:"workdir,optional"`
	Env        hcl.Expression `hcl:"env,optional"`
	Mounts     []*mountBlock  `hcl:"mount,block"`
}

type mountBlock struct {
	Source   string `hcl:"source"`
	Target   string `hcl:"target"`
	ReadOnly bool   `hcl:"read_only,optional"`
}

type stepBlock struct {
	Name string         `hcl:"name,optional"`
	Run  string         `hcl:"run"`
	Env  hcl.Expression `hcl:"env,optional"`
}

// Load reads and translates one HCL workflow file.
func (l *Loader) Load(ctx context.Context, path string) (*workflow.Workflow, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse workflow file %s: %s", path, diags.Error())
	}
	return l.translate(ctx, file.Body)
}

// Parse translates raw HCL document bytes into the workflow model.
func (l *Loader) Parse(ctx context.Context, data []byte, filename string) (*workflow.Workflow, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse workflow document: %s", diags.Error())
	}
	return l.translate(ctx, file.Body)
}

func (l *Loader) translate(ctx context.Context, body hcl.Body) (*workflow.Workflow, error) {
	logger := ctxlog.FromContext(ctx)

	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decode workflow document: %s", diags.Error())
	}

	wf := &workflow.Workflow{}
	if root.Workflow != nil {
		wf.Name = root.Workflow.Name
		env, err := stringMap(root.Workflow.Env)
		if err != nil {
			return nil, fmt.Errorf("workflow env: %w", err)
		}
		wf.Env = env
	}

	for _, jb := range root.Jobs {
		job, err := translateJob(jb)
		if err != nil {
			return nil, err
		}
		wf.Jobs = append(wf.Jobs, job)
	}

	logger.Info("Workflow document loaded.", "name", wf.Name, "jobs", len(wf.Jobs))
	return wf, nil
}

func translateJob(jb *jobBlock) (*workflow.Job, error) {
	condition, err := workflow.ParseCondition(jb.Condition)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", jb.ID, err)
	}
	if jb.Container == nil {
		return nil, fmt.Errorf("job %q: container block is required", jb.ID)
	}

	container, err := translateContainer(jb.ID, jb.Container.Image, jb.Container.Privileged, jb.Container.WorkDir, jb.Container.Env, jb.Container.Mounts)
	if err != nil {
		return nil, err
	}

	job := &workflow.Job{
		ID:        jb.ID,
		Needs:     jb.Needs,
		Condition: condition,
		Container: container,
	}

	if len(jb.Services) > 0 {
		job.Services = make(map[string]workflow.ContainerSpec, len(jb.Services))
		for _, svc := range jb.Services {
			spec, err := translateContainer(jb.ID+"/"+svc.Name, svc.Image, svc.Privileged, svc.WorkDir, svc.Env, svc.Mounts)
			if err != nil {
				return nil, err
			}
			job.Services[svc.Name] = spec
		}
	}

	for _, sb := range jb.Steps {
		env, err := stringMap(sb.Env)
		if err != nil {
			return nil, fmt.Errorf("job %q step env: %w", jb.ID, err)
		}
		job.Steps = append(job.Steps, workflow.Step{Name: sb.Name, Run: sb.Run, Env: env})
	}
	return job, nil
}

func translateContainer(owner, image string, privileged bool, workDir string, env hcl.Expression, mounts []*mountBlock) (workflow.ContainerSpec, error) {
	if image == "" {
		return workflow.ContainerSpec{}, fmt.Errorf("job %q: container image is required", owner)
	}

	envMap, err := stringMap(env)
	if err != nil {
		return workflow.ContainerSpec{}, fmt.Errorf("job %q container env: %w", owner, err)
	}

	spec := workflow.ContainerSpec{
		Image:      image,
		Privileged: privileged,
		WorkDir:    workDir,
		Env:        envMap,
	}
	for _, m := range mounts {
		spec.Mounts = append(spec.Mounts, workflow.Mount{Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly})
	}
	return spec, nil
}
