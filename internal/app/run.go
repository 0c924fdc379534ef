package app

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/dockerrt"
	"github.com/vk/bootflow/internal/events"
	"github.com/vk/bootflow/internal/graph"
	"github.com/vk/bootflow/internal/report"
	"github.com/vk/bootflow/internal/runner"
	"github.com/vk/bootflow/internal/scheduler"
)

// runOutput is the JSON document written for -report.
type runOutput struct {
	Summary report.Summary  `json:"summary"`
	DryRun  []runner.Record `json:"dry_run,omitempty"`
}

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.Sweep {
		return a.sweep(ctx)
	}

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	wf, err := loaderFor(a.config.WorkflowPath).Load(ctx, a.config.WorkflowPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	a.logger.Debug("Building dependency graph from workflow model...")
	g, err := graph.Build(ctx, wf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	a.logger.Debug("Dependency graph built.", "job_count", g.Len())

	runID := uuid.NewString()
	extraEnv := map[string]string{"NEWROOT": a.config.Newroot}

	var exec runner.Executor
	var dry *runner.DryRun
	if a.config.DryRun {
		dry = runner.NewDryRun(wf.Env, extraEnv)
		exec = dry
		a.logger.Info("Dry-run mode: no containers will be started.")
	} else {
		rt, err := dockerrt.New(runID,
			dockerrt.WithParallel(a.config.RuntimeParallel),
			dockerrt.WithStepOutput(a.outW),
		)
		if err != nil {
			return fmt.Errorf("container runtime unavailable: %w", err)
		}
		defer rt.Close()
		exec = runner.NewContainer(rt, wf.Env, extraEnv)
	}

	coord := scheduler.New(g, exec,
		scheduler.WithWorkers(a.config.Workers),
		scheduler.WithSink(events.NewLogSink(a.logger)),
		scheduler.WithRunID(runID),
	)
	rep := coord.Run(ctx)
	summary := rep.Summarize()

	if err := a.writeReport(summary, dry); err != nil {
		return err
	}

	if !summary.Success {
		return fmt.Errorf("%w: %d job(s) failed, %d never finished",
			ErrExecution, summary.Counts[report.Failed], g.Len()-len(summary.Jobs))
	}

	a.logger.Info("Workflow finished successfully.",
		"run_id", summary.RunID,
		"succeeded", summary.Counts[report.Succeeded],
		"skipped", summary.Counts[report.Skipped],
	)
	return nil
}

// sweep removes containers left behind by abruptly terminated runs. They are
// found by the run label the runtime stamps on everything it creates.
func (a *App) sweep(ctx context.Context) error {
	rt, err := dockerrt.New("")
	if err != nil {
		return fmt.Errorf("container runtime unavailable: %w", err)
	}
	defer rt.Close()

	if err := rt.Sweep(ctx); err != nil {
		return fmt.Errorf("sweep leaked containers: %w", err)
	}
	a.logger.Info("Sweep finished.")
	return nil
}

// writeReport renders the run summary (and dry-run records, when present) as
// JSON to the configured destination.
func (a *App) writeReport(summary report.Summary, dry *runner.DryRun) error {
	if a.config.ReportPath == "" {
		return nil
	}

	out := runOutput{Summary: summary}
	if dry != nil {
		out.DryRun = dry.Records()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("render run report: %w", err)
	}
	data = append(data, '\n')

	if a.config.ReportPath == "-" {
		_, err = a.outW.Write(data)
		return err
	}
	if err := os.WriteFile(a.config.ReportPath, data, 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}
