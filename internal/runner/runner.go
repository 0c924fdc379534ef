// Package runner defines the job executor abstraction and its two
// implementations: a container-backed executor that drives a real
// ContainerRuntime, and a dry-run executor that records intended actions
// without side effects.
//
// The execution coordinator is agnostic to which implementation it drives;
// the executor is selected once, for the whole run.
package runner

import (
	"context"
	"fmt"

	"github.com/vk/bootflow/internal/workflow"
)

// Outcome is the result of executing one job. A nil Err means the job
// succeeded.
type Outcome struct {
	Err error
	// StepIndex is the zero-based index of the failing step, or -1 when the
	// failure was not tied to a step (acquire error, release error).
	StepIndex int
	// ExitCode is the failing step's exit status, or 0 on success and -1
	// when no process exit status exists for the failure.
	ExitCode int
}

// Success reports whether the job succeeded.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Succeeded is the outcome of a job whose every step passed.
func Succeeded() Outcome {
	return Outcome{StepIndex: -1}
}

// StepFailed is the outcome of a job aborted at the given step.
func StepFailed(index int, label string, exitCode int) Outcome {
	return Outcome{
		Err:       fmt.Errorf("step %d (%s) exited with status %d", index, label, exitCode),
		StepIndex: index,
		ExitCode:  exitCode,
	}
}

// InternalFailure is the outcome of a job whose executor hit a fault that is
// not a step exit status (container acquisition, runtime error). It is never
// silently swallowed: the underlying fault is captured as the reason.
func InternalFailure(err error) Outcome {
	return Outcome{Err: err, StepIndex: -1, ExitCode: -1}
}

// Executor runs one job to an outcome. Implementations must be safe for
// concurrent use; the coordinator dispatches independent jobs in parallel.
type Executor interface {
	Execute(ctx context.Context, job *workflow.Job) Outcome
}
