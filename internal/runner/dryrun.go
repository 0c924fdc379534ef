package runner

import (
	"context"
	"sync"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/workflow"
)

// Record is the structured description of what a dry run would have done for
// one job.
type Record struct {
	Job        string            `json:"job"`
	Image      string            `json:"image"`
	Privileged bool              `json:"privileged,omitempty"`
	WorkDir    string            `json:"workdir,omitempty"`
	Mounts     []workflow.Mount  `json:"mounts,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Services   map[string]string `json:"services,omitempty"`
	Steps      []string          `json:"steps,omitempty"`
}

// DryRun is the executor used in dry-run mode. It performs no container
// operations, always reports success, and keeps a record per executed job
// for inspection. Safe for concurrent use.
type DryRun struct {
	wfEnv    map[string]string
	extraEnv map[string]string

	mu      sync.Mutex
	records []Record
}

// NewDryRun creates a dry-run executor. wfEnv is the workflow-level
// environment; extraEnv holds runner-injected variables such as NEWROOT.
func NewDryRun(wfEnv, extraEnv map[string]string) *DryRun {
	return &DryRun{wfEnv: wfEnv, extraEnv: extraEnv}
}

// Execute records the job's intended container, environment and steps, then
// reports success.
func (d *DryRun) Execute(ctx context.Context, job *workflow.Job) Outcome {
	logger := ctxlog.FromContext(ctx).With("job", job.ID)

	rec := Record{
		Job:        job.ID,
		Image:      job.Container.Image,
		Privileged: job.Container.Privileged,
		WorkDir:    job.Container.WorkDir,
		Mounts:     job.Container.Mounts,
		Env:        workflow.MergeEnv(d.wfEnv, job.Container.Env, d.extraEnv),
	}
	if len(job.Services) > 0 {
		rec.Services = make(map[string]string, len(job.Services))
		for name, svc := range job.Services {
			rec.Services[name] = svc.Image
		}
	}
	for _, step := range job.Steps {
		rec.Steps = append(rec.Steps, step.Label())
	}

	d.mu.Lock()
	d.records = append(d.records, rec)
	d.mu.Unlock()

	logger.Info("💤 Dry run: job recorded, not executed.", "image", rec.Image, "steps", len(rec.Steps))
	return Succeeded()
}

// Records returns a copy of the accumulated dry-run records.
func (d *DryRun) Records() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Record{}, d.records...)
}
