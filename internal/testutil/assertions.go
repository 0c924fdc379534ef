package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/bootflow/internal/report"
)

// AssertJobState checks the harness report for a job's terminal state.
func AssertJobState(t *testing.T, result *RunResult, jobID string, want report.State) {
	t.Helper()
	for _, entry := range result.Summary.Jobs {
		if entry.JobID == jobID {
			require.Equal(t, want, entry.State, "job %q ended in state %q, want %q", jobID, entry.State, want)
			return
		}
	}
	t.Fatalf("job %q has no entry in the run report", jobID)
}
