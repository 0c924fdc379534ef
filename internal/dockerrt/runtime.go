// Package dockerrt implements the runner.ContainerRuntime interface over the
// Docker Engine API. It talks to whatever engine serves the socket (Docker or
// podman's compatibility endpoint), which is how privileged job containers
// are launched during early boot.
//
// Every container created here carries a `bootflow.run` label with the run
// id. On abrupt process termination nothing here is guaranteed to clean up;
// the label exists so an operator (or Sweep) can find and remove leaked
// containers afterwards. That limitation is deliberate and documented, not a
// handled case.
package dockerrt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/runner"
	"github.com/vk/bootflow/internal/workflow"
)

// RunLabel is the container label carrying the run id.
const RunLabel = "bootflow.run"

// Runtime drives a container engine through its API socket. Safe for
// concurrent use; simultaneous acquisitions may be bounded with WithParallel
// as a resource policy invisible to the coordinator.
type Runtime struct {
	cli     client.APIClient
	runID   string
	sem     chan struct{}
	stepOut io.Writer
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithParallel bounds the number of simultaneously acquired containers.
// Zero or negative means unbounded.
func WithParallel(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.sem = make(chan struct{}, n)
		}
	}
}

// WithStepOutput sets the writer receiving step stdout/stderr. Defaults to
// io.Discard.
func WithStepOutput(w io.Writer) Option {
	return func(r *Runtime) { r.stepOut = w }
}

// WithClient replaces the engine client. Used by tests.
func WithClient(cli client.APIClient) Option {
	return func(r *Runtime) { r.cli = cli }
}

// New connects to the container engine using the standard environment
// (DOCKER_HOST and friends) with API version negotiation.
func New(runID string, opts ...Option) (*Runtime, error) {
	r := &Runtime{runID: runID, stepOut: io.Discard}
	for _, opt := range opts {
		opt(r)
	}
	if r.cli == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("connect to container engine: %w", err)
		}
		r.cli = cli
	}
	return r, nil
}

// Close releases the engine client.
func (r *Runtime) Close() error {
	return r.cli.Close()
}

type handle struct {
	id   string
	name string
}

func (h *handle) ID() string { return h.id }

// Acquire pulls the image, creates the container (held alive so steps can be
// executed inside it), and starts it.
func (r *Runtime) Acquire(ctx context.Context, name string, spec workflow.ContainerSpec) (runner.Handle, error) {
	logger := ctxlog.FromContext(ctx).With("container", name, "image", spec.Image)

	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h, err := r.acquire(ctx, logger, name, spec)
	if err != nil {
		r.releaseSlot()
		return nil, err
	}
	return h, nil
}

func (r *Runtime) acquire(ctx context.Context, logger *slog.Logger, name string, spec workflow.ContainerSpec) (runner.Handle, error) {
	logger.Debug("Pulling image.")
	pull, err := r.cli.ImagePull(ctx, spec.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("pull image %q: %w", spec.Image, err)
	}
	// The pull stream must be drained for the pull to complete.
	_, _ = io.Copy(io.Discard, pull)
	_ = pull.Close()

	cfg := &container.Config{
		Image: spec.Image,
		// The container idles; steps run inside it via exec.
		Entrypoint: strslice.StrSlice{"sleep"},
		Cmd:        strslice.StrSlice{"infinity"},
		WorkingDir: spec.WorkDir,
		Env:        envSlice(spec.Env),
		Labels:     map[string]string{RunLabel: r.runID},
	}
	host := &container.HostConfig{
		Privileged: spec.Privileged,
		Binds:      Binds(spec.Mounts),
	}

	logger.Debug("Creating container.")
	created, err := r.cli.ContainerCreate(ctx, cfg, host, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container for %q: %w", spec.Image, err)
	}

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		// The container exists already; remove it before reporting failure.
		_ = r.cli.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("start container for %q: %w", spec.Image, err)
	}

	logger.Debug("Container started.")
	return &handle{id: created.ID, name: name}, nil
}

// RunStep executes one step inside the acquired container and returns its
// exit status.
func (r *Runtime) RunStep(ctx context.Context, h runner.Handle, step workflow.Step, env map[string]string) (int, error) {
	execResp, err := r.cli.ContainerExecCreate(ctx, h.ID(), container.ExecOptions{
		Cmd:          strslice.StrSlice{"/bin/sh", "-c", step.Run},
		Env:          envSlice(env),
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return -1, fmt.Errorf("create exec: %w", err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return -1, fmt.Errorf("attach exec: %w", err)
	}
	defer attach.Close()

	// Demultiplex the engine's combined stream; blocks until the step exits.
	if _, err := stdcopy.StdCopy(r.stepOut, r.stepOut, attach.Reader); err != nil {
		return -1, fmt.Errorf("read step output: %w", err)
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return -1, fmt.Errorf("inspect exec: %w", err)
	}
	return inspect.ExitCode, nil
}

// Release force-removes the container. Called on every exit path once
// acquisition succeeded.
func (r *Runtime) Release(ctx context.Context, h runner.Handle) error {
	defer r.releaseSlot()

	// Removal proceeds even when the surrounding run is being canceled.
	ctx = context.WithoutCancel(ctx)
	if err := r.cli.ContainerRemove(ctx, h.ID(), container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// Sweep force-removes every container carrying a run label, regardless of
// run id. Best-effort recovery after an abrupt termination.
func (r *Runtime) Sweep(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	list, err := r.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", RunLabel)),
	})
	if err != nil {
		return fmt.Errorf("list labeled containers: %w", err)
	}

	for _, c := range list {
		logger.Info("🔥 Removing leaked container.", "id", c.ID, "run_id", c.Labels[RunLabel])
		if err := r.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("remove container %s: %w", c.ID, err)
		}
	}
	return nil
}

func (r *Runtime) releaseSlot() {
	if r.sem != nil {
		<-r.sem
	}
}

// envSlice renders an environment map as the engine's KEY=VALUE list, sorted
// for deterministic container configs.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Binds renders mounts in the engine's source:target[:ro] form.
func Binds(mounts []workflow.Mount) []string {
	var binds []string
	for _, m := range mounts {
		bind := m.Source + ":" + m.Target
		if m.ReadOnly {
			bind += ":ro"
		}
		binds = append(binds, bind)
	}
	return binds
}
