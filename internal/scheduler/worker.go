package scheduler

import (
	"context"
	"fmt"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/report"
	"github.com/vk/bootflow/internal/workflow"
)

// worker is the processing loop of one concurrent worker. Every job it
// receives has all dependencies in a terminal state already.
func (c *Coordinator) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for id := range c.ready {
		workerLogger := logger.With("workerID", workerID, "job", id)

		if ctx.Err() != nil {
			workerLogger.Warn("Context canceled, job will not run.")
			c.finalize(ctx, id, report.Failed, -1, ctx.Err())
			continue
		}

		job, ok := c.graph.Job(id)
		if !ok {
			// Cannot happen on a validated graph.
			c.finalize(ctx, id, report.Failed, -1, fmt.Errorf("job %q missing from graph", id))
			continue
		}

		run, reason := c.evaluateCondition(job)
		if !run {
			workerLogger.Info("Condition not met, skipping job.", "condition", string(job.Condition), "reason", reason.Error())
			c.finalize(ctx, id, report.Skipped, -1, reason)
			continue
		}

		workerLogger.Debug("Worker picked up job for execution.")
		prev := c.states[id].transition(report.Running, 0, nil)
		c.publish(ctx, id, prev, report.Running, nil)

		outcome := c.exec.Execute(ctx, job)
		if outcome.Success() {
			workerLogger.Debug("Job execution succeeded.")
			c.finalize(ctx, id, report.Succeeded, 0, nil)
			continue
		}

		workerLogger.Warn("Job execution failed.", "error", outcome.Err)
		c.finalize(ctx, id, report.Failed, outcome.ExitCode, outcome.Err)
	}

	logger.Debug("Worker finished.", "workerID", workerID)
}

// evaluateCondition decides whether a ready job may run, given the terminal
// states of its dependencies. A job with no dependencies is evaluated on an
// implicit "all dependencies succeeded" basis.
func (c *Coordinator) evaluateCondition(job *workflow.Job) (bool, error) {
	allSucceeded := true
	anyFailed := false
	var blocker string

	for _, dep := range c.graph.Dependencies(job.ID) {
		switch c.states[dep].current() {
		case report.Failed:
			anyFailed = true
			allSucceeded = false
			if blocker == "" {
				blocker = dep
			}
		case report.Skipped:
			allSucceeded = false
			if blocker == "" {
				blocker = dep
			}
		}
	}

	switch job.Condition {
	case workflow.OnFailure:
		if anyFailed {
			return true, nil
		}
		return false, fmt.Errorf("condition on_failure not met: no dependency failed")
	case workflow.Always:
		return true, nil
	default: // on_success
		if allSucceeded {
			return true, nil
		}
		return false, fmt.Errorf("condition on_success not met: dependency %q did not succeed", blocker)
	}
}
