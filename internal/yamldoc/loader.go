// Package yamldoc loads YAML workflow documents into the workflow model.
//
// The `jobs` key is a mapping of job id to job definition. Document order of
// that mapping is preserved because it seeds the scheduler's deterministic
// dispatch tie-break, so the mapping is walked node by node instead of being
// decoded into a Go map.
package yamldoc

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/workflow"
)

// Loader is the YAML implementation of workflow.Loader.
type Loader struct{}

// NewLoader creates a new YAML workflow loader.
func NewLoader() *Loader {
	return &Loader{}
}

type document struct {
	Name string            `yaml:"name"`
	Env  map[string]string `yaml:"env"`
	Jobs yaml.Node         `yaml:"jobs"`
}

type jobDoc struct {
	Needs     []string                `yaml:"needs"`
	Condition string                  `yaml:"if"`
	Container containerDoc            `yaml:"container"`
	Services  map[string]containerDoc `yaml:"services"`
	Steps     []stepDoc               `yaml:"steps"`
}

type containerDoc struct {
	Image      string            `yaml:"image"`
	Privileged bool              `yaml:"privileged"`
	Mounts     []mountDoc        `yaml:"mounts"`
	Env        map[string]string `yaml:"env"`
	WorkDir    string            `yaml:"workdir"`
}

type mountDoc struct {
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	ReadOnly bool   `yaml:"read_only"`
}

type stepDoc struct {
	Name string            `yaml:"name"`
	Run  string            `yaml:"run"`
	Env  map[string]string `yaml:"env"`
}

// Load reads and translates one YAML workflow file.
func (l *Loader) Load(ctx context.Context, path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	return l.Parse(ctx, data)
}

// Parse translates raw YAML document bytes into the workflow model.
func (l *Loader) Parse(ctx context.Context, data []byte) (*workflow.Workflow, error) {
	logger := ctxlog.FromContext(ctx)

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow document: %w", err)
	}

	wf := &workflow.Workflow{Name: doc.Name, Env: doc.Env}

	if !doc.Jobs.IsZero() {
		if doc.Jobs.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("parse workflow document: 'jobs' must be a mapping of job id to definition")
		}
		// Mapping content alternates key and value nodes.
		for i := 0; i+1 < len(doc.Jobs.Content); i += 2 {
			id := doc.Jobs.Content[i].Value

			var jd jobDoc
			if err := doc.Jobs.Content[i+1].Decode(&jd); err != nil {
				return nil, fmt.Errorf("parse job %q: %w", id, err)
			}

			job, err := translateJob(id, &jd)
			if err != nil {
				return nil, err
			}
			wf.Jobs = append(wf.Jobs, job)
		}
	}

	logger.Info("Workflow document loaded.", "name", nameOrDefault(wf.Name), "jobs", len(wf.Jobs))
	return wf, nil
}

func translateJob(id string, jd *jobDoc) (*workflow.Job, error) {
	condition, err := workflow.ParseCondition(jd.Condition)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", id, err)
	}

	container, err := translateContainer(id, jd.Container)
	if err != nil {
		return nil, err
	}

	job := &workflow.Job{
		ID:        id,
		Needs:     jd.Needs,
		Condition: condition,
		Container: container,
	}

	if len(jd.Services) > 0 {
		job.Services = make(map[string]workflow.ContainerSpec, len(jd.Services))
		for name, svc := range jd.Services {
			spec, err := translateContainer(id+"/"+name, svc)
			if err != nil {
				return nil, err
			}
			job.Services[name] = spec
		}
	}

	for _, sd := range jd.Steps {
		job.Steps = append(job.Steps, workflow.Step{Name: sd.Name, Run: sd.Run, Env: sd.Env})
	}
	return job, nil
}

func translateContainer(owner string, cd containerDoc) (workflow.ContainerSpec, error) {
	if cd.Image == "" {
		return workflow.ContainerSpec{}, fmt.Errorf("job %q: container image is required", owner)
	}
	spec := workflow.ContainerSpec{
		Image:      cd.Image,
		Privileged: cd.Privileged,
		Env:        cd.Env,
		WorkDir:    cd.WorkDir,
	}
	for _, m := range cd.Mounts {
		spec.Mounts = append(spec.Mounts, workflow.Mount{Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly})
	}
	return spec, nil
}

func nameOrDefault(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
