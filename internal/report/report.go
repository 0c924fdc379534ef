// Package report accumulates per-job outcomes into the final run report.
//
// The report is created empty at run start, appended to by the execution
// coordinator as jobs reach terminal states, and read-only once the run
// completes. No job's entry is ever overwritten.
package report

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the execution state of a job. The coordinator owns the state
// machine; the report records only terminal states.
type State string

const (
	Pending   State = "pending"
	Ready     State = "ready"
	Running   State = "running"
	Succeeded State = "succeeded"
	Failed    State = "failed"
	Skipped   State = "skipped"
)

// Terminal reports whether no further transition can occur from s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

// Entry is the recorded outcome of one job.
type Entry struct {
	JobID    string `json:"job"`
	State    State  `json:"state"`
	ExitCode int    `json:"exit_code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report is the append-only accumulation of job outcomes for one run.
// Safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	runID   string
	started time.Time
	jobs    []string // every job the run is expected to drive
	entries map[string]Entry
}

// New creates an empty report covering the given job ids. A job missing from
// the finished report (never reached a terminal state) fails the run. An
// empty runID gets a generated one; callers that label external resources
// with the run id pass their own.
func New(jobs []string, runID string) *Report {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Report{
		runID:   runID,
		started: time.Now(),
		jobs:    append([]string{}, jobs...),
		entries: make(map[string]Entry, len(jobs)),
	}
}

// RunID returns the unique id of this run.
func (r *Report) RunID() string {
	return r.runID
}

// Add records a job's terminal outcome. It rejects non-terminal states and
// refuses to overwrite an existing entry.
func (r *Report) Add(jobID string, state State, exitCode int, jobErr error) error {
	if !state.Terminal() {
		return fmt.Errorf("report: state %q for job %q is not terminal", state, jobID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[jobID]; exists {
		return fmt.Errorf("report: job %q already has a terminal entry", jobID)
	}

	entry := Entry{JobID: jobID, State: state, ExitCode: exitCode}
	if jobErr != nil {
		entry.Error = jobErr.Error()
	}
	r.entries[jobID] = entry
	return nil
}

// Entry returns the recorded outcome for a job, if any.
func (r *Report) Entry(jobID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[jobID]
	return e, ok
}

// Summary is the finalized view of a run, suitable for JSON rendering.
type Summary struct {
	RunID    string        `json:"run_id"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration_ns"`
	Counts   map[State]int `json:"counts"`
	Jobs     []Entry       `json:"jobs"`
}

// Summarize computes the overall run outcome. The run succeeded iff every
// expected job reached a terminal state and none of them failed. A skipped
// job is a legitimate outcome and does not fail the run.
func (r *Report) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		RunID:    r.runID,
		Success:  true,
		Duration: time.Since(r.started),
		Counts:   make(map[State]int),
	}

	for _, jobID := range r.jobs {
		entry, ok := r.entries[jobID]
		if !ok {
			// Never reached a terminal state: abnormal run.
			s.Success = false
			continue
		}
		s.Counts[entry.State]++
		s.Jobs = append(s.Jobs, entry)
		if entry.State == Failed {
			s.Success = false
		}
	}
	return s
}
