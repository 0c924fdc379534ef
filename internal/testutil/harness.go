package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/vk/bootflow/internal/app"
	"github.com/vk/bootflow/internal/report"
	"github.com/vk/bootflow/internal/runner"
)

// RunResult holds the outcomes of a harness run.
type RunResult struct {
	LogOutput string
	Err       error
	Summary   report.Summary
	DryRun    []runner.Record
}

// reportFile mirrors the app's -report JSON document.
type reportFile struct {
	Summary report.Summary  `json:"summary"`
	DryRun  []runner.Record `json:"dry_run"`
}

// RunWorkflow writes the document under the given file name into a temp
// directory and runs the app against it in dry-run mode, capturing logs and
// the JSON report.
func RunWorkflow(t *testing.T, filename, content string) *RunResult {
	t.Helper()
	return RunWorkflowWithContext(context.Background(), t, filename, content)
}

// RunWorkflowWithContext is RunWorkflow with a caller-provided context.
func RunWorkflowWithContext(ctx context.Context, t *testing.T, filename, content string) *RunResult {
	t.Helper()

	tmpDir := t.TempDir()
	docPath := filepath.Join(tmpDir, filename)
	require.NoError(t, os.WriteFile(docPath, []byte(content), 0o644))
	reportPath := filepath.Join(tmpDir, "report.json")

	cfg, err := app.NewConfig(app.Config{
		WorkflowPath: docPath,
		Newroot:      "/sysroot",
		DryRun:       true,
		ReportPath:   reportPath,
		LogFormat:    "text",
		LogLevel:     "debug",
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	runErr := app.New(logBuffer, cfg).Run(ctx)

	result := &RunResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
	}

	if data, err := os.ReadFile(reportPath); err == nil {
		var rf reportFile
		require.NoError(t, json.Unmarshal(data, &rf))
		result.Summary = rf.Summary
		result.DryRun = rf.DryRun
	}

	if os.Getenv("BOOTFLOW_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
