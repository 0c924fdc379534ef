package runner

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/workflow"
)

// Handle identifies one acquired container for the lifetime of a job.
type Handle interface {
	ID() string
}

// ContainerRuntime is the narrow interface to the real container engine. The
// executor calls it in strict acquire -> run steps -> release order, with
// release guaranteed on every exit path once acquisition succeeded.
type ContainerRuntime interface {
	Acquire(ctx context.Context, name string, spec workflow.ContainerSpec) (Handle, error)
	RunStep(ctx context.Context, h Handle, step workflow.Step, env map[string]string) (exitCode int, err error)
	Release(ctx context.Context, h Handle) error
}

// Container is the real executor: it acquires the job's container (and any
// declared service sidecars), runs each step sequentially inside it, and
// releases everything in reverse acquisition order.
type Container struct {
	rt       ContainerRuntime
	wfEnv    map[string]string
	extraEnv map[string]string
}

// NewContainer creates a container-backed executor. wfEnv is the
// workflow-level environment; extraEnv holds runner-injected variables such
// as NEWROOT.
func NewContainer(rt ContainerRuntime, wfEnv, extraEnv map[string]string) *Container {
	return &Container{rt: rt, wfEnv: wfEnv, extraEnv: extraEnv}
}

// Execute runs one job. The first failing step aborts the rest; an internal
// runtime fault becomes a Failed outcome for this job only. Acquired
// containers are always released, even when acquisition of a later container
// or a step fails.
func (c *Container) Execute(ctx context.Context, job *workflow.Job) Outcome {
	logger := ctxlog.FromContext(ctx).With("job", job.ID)

	var acquired []Handle
	outcome := c.execute(ctx, job, &acquired)

	// LIFO release, mirroring acquisition order.
	var releaseErr error
	for i := len(acquired) - 1; i >= 0; i-- {
		if err := c.rt.Release(ctx, acquired[i]); err != nil {
			logger.Error("Container release failed.", "container", acquired[i].ID(), "error", err)
			if releaseErr == nil {
				releaseErr = err
			}
		}
	}

	if outcome.Success() && releaseErr != nil {
		return InternalFailure(fmt.Errorf("release container: %w", releaseErr))
	}
	return outcome
}

func (c *Container) execute(ctx context.Context, job *workflow.Job, acquired *[]Handle) Outcome {
	logger := ctxlog.FromContext(ctx).With("job", job.ID)

	for _, name := range sortedServiceNames(job.Services) {
		svc := job.Services[name]
		logger.Debug("Acquiring service container.", "service", name, "image", svc.Image)
		h, err := c.rt.Acquire(ctx, job.ID+"-"+name, svc)
		if err != nil {
			return InternalFailure(fmt.Errorf("acquire service %q: %w", name, err))
		}
		*acquired = append(*acquired, h)
	}

	logger.Debug("Acquiring job container.", "image", job.Container.Image)
	main, err := c.rt.Acquire(ctx, job.ID, job.Container)
	if err != nil {
		return InternalFailure(fmt.Errorf("acquire container: %w", err))
	}
	*acquired = append(*acquired, main)

	for i, step := range job.Steps {
		stepLogger := logger.With("step", i, "name", step.Label())
		stepLogger.Info("▶️ Running step.")

		env := workflow.MergeEnv(c.wfEnv, job.Container.Env, step.Env, c.extraEnv)
		exitCode, err := c.rt.RunStep(ctx, main, step, env)
		if err != nil {
			return Outcome{
				Err:       fmt.Errorf("step %d (%s): %w", i, step.Label(), err),
				StepIndex: i,
				ExitCode:  -1,
			}
		}
		if exitCode != 0 {
			stepLogger.Warn("Step failed, aborting remaining steps.", "exit_code", exitCode)
			return StepFailed(i, step.Label(), exitCode)
		}
		stepLogger.Debug("Step succeeded.")
	}

	return Succeeded()
}

func sortedServiceNames(services map[string]workflow.ContainerSpec) []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
