package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bootflow/internal/events"
	"github.com/vk/bootflow/internal/graph"
	"github.com/vk/bootflow/internal/report"
	"github.com/vk/bootflow/internal/runner"
	"github.com/vk/bootflow/internal/workflow"
)

func job(id string, needs ...string) *workflow.Job {
	return jobIf(id, workflow.OnSuccess, needs...)
}

func jobIf(id string, cond workflow.Condition, needs ...string) *workflow.Job {
	return &workflow.Job{
		ID:        id,
		Needs:     needs,
		Condition: cond,
		Container: workflow.ContainerSpec{Image: "registry.test/busybox"},
	}
}

func mustBuild(t *testing.T, jobs ...*workflow.Job) *graph.Graph {
	t.Helper()
	g, err := graph.Build(context.Background(), &workflow.Workflow{Jobs: jobs})
	require.NoError(t, err)
	return g
}

// fakeExecutor records execution order and fails the configured jobs. A
// strictly increasing sequence number is taken at dispatch and at completion
// so tests can reason about overlap.
type fakeExecutor struct {
	mu    sync.Mutex
	seq   int
	start map[string]int
	end   map[string]int
	fail  map[string]bool

	// gate, when set for a job, blocks its execution until released.
	gate map[string]chan struct{}
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		start: make(map[string]int),
		end:   make(map[string]int),
		fail:  make(map[string]bool),
		gate:  make(map[string]chan struct{}),
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, j *workflow.Job) runner.Outcome {
	f.mu.Lock()
	if _, dup := f.start[j.ID]; dup {
		panic("job dispatched twice: " + j.ID)
	}
	f.seq++
	f.start[j.ID] = f.seq
	gate := f.gate[j.ID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.seq++
	f.end[j.ID] = f.seq
	failed := f.fail[j.ID]
	f.mu.Unlock()

	if failed {
		return runner.StepFailed(0, "boom", 1)
	}
	return runner.Succeeded()
}

func run(t *testing.T, g *graph.Graph, exec runner.Executor, opts ...Option) report.Summary {
	t.Helper()
	rep := New(g, exec, opts...).Run(context.Background())
	return rep.Summarize()
}

func jobStateOf(t *testing.T, s report.Summary, id string) report.State {
	t.Helper()
	for _, e := range s.Jobs {
		if e.JobID == id {
			return e.State
		}
	}
	t.Fatalf("job %q missing from summary", id)
	return ""
}

func TestEveryJobReachesExactlyOneTerminalState(t *testing.T) {
	g := mustBuild(t,
		job("fetch"),
		job("verify", "fetch"),
		job("unpack", "fetch"),
		job("install", "verify", "unpack"),
	)
	exec := newFakeExecutor()

	s := run(t, g, exec)

	require.True(t, s.Success)
	assert.Len(t, s.Jobs, 4)
	assert.Equal(t, 4, s.Counts[report.Succeeded])
}

func TestJobNeverStartsBeforeDependenciesAreTerminal(t *testing.T) {
	g := mustBuild(t, job("a"), job("b", "a"), job("c", "b"))
	exec := newFakeExecutor()

	run(t, g, exec)

	assert.Less(t, exec.end["a"], exec.start["b"], "b started before a finished")
	assert.Less(t, exec.end["b"], exec.start["c"], "c started before b finished")
}

func TestFailedDependencySkipsOnSuccessJob(t *testing.T) {
	g := mustBuild(t, job("a"), job("b", "a"))
	exec := newFakeExecutor()
	exec.fail["a"] = true

	s := run(t, g, exec)

	assert.False(t, s.Success)
	assert.Equal(t, report.Failed, jobStateOf(t, s, "a"))
	assert.Equal(t, report.Skipped, jobStateOf(t, s, "b"))
	_, dispatched := exec.start["b"]
	assert.False(t, dispatched, "skipped job must never be dispatched")
}

func TestOnSuccessWithOneFailedAmongSucceededDependencies(t *testing.T) {
	g := mustBuild(t, job("ok1"), job("bad"), job("ok2"), job("gated", "ok1", "bad", "ok2"))
	exec := newFakeExecutor()
	exec.fail["bad"] = true

	s := run(t, g, exec)

	assert.Equal(t, report.Skipped, jobStateOf(t, s, "gated"))
}

func TestOnFailureRunsOnlyAfterFailedDependency(t *testing.T) {
	g := mustBuild(t,
		job("a"),
		job("b"),
		jobIf("rescue", workflow.OnFailure, "a"),
		jobIf("unneeded", workflow.OnFailure, "b"),
	)
	exec := newFakeExecutor()
	exec.fail["a"] = true

	s := run(t, g, exec)

	assert.Equal(t, report.Succeeded, jobStateOf(t, s, "rescue"))
	assert.Equal(t, report.Skipped, jobStateOf(t, s, "unneeded"))
}

func TestAlwaysJobRunsAfterFailedAndSkippedDependencies(t *testing.T) {
	g := mustBuild(t,
		job("a"),
		job("b", "a"), // skipped: a fails
		jobIf("cleanup", workflow.Always, "a", "b"),
	)
	exec := newFakeExecutor()
	exec.fail["a"] = true

	s := run(t, g, exec)

	assert.Equal(t, report.Failed, jobStateOf(t, s, "a"))
	assert.Equal(t, report.Skipped, jobStateOf(t, s, "b"))
	assert.Equal(t, report.Succeeded, jobStateOf(t, s, "cleanup"))
	// A required job failed, so the run still fails overall.
	assert.False(t, s.Success)
}

func TestSkipCascadesThroughDependencyChain(t *testing.T) {
	g := mustBuild(t, job("a"), job("b", "a"), job("c", "b"))
	exec := newFakeExecutor()
	exec.fail["a"] = true

	s := run(t, g, exec)

	assert.Equal(t, report.Skipped, jobStateOf(t, s, "b"))
	assert.Equal(t, report.Skipped, jobStateOf(t, s, "c"))
}

func TestFailureDoesNotAbortIndependentJobs(t *testing.T) {
	g := mustBuild(t, job("bad"), job("independent"))
	exec := newFakeExecutor()
	exec.fail["bad"] = true

	s := run(t, g, exec)

	assert.Equal(t, report.Succeeded, jobStateOf(t, s, "independent"))
	assert.False(t, s.Success)
}

func TestIndependentJobsRunConcurrently(t *testing.T) {
	g := mustBuild(t, job("left"), job("right"))
	exec := newFakeExecutor()

	// Neither job may finish until both have started: this only terminates
	// if the two executions overlap.
	release := make(chan struct{})
	exec.gate["left"] = release
	exec.gate["right"] = release

	done := make(chan report.Summary, 1)
	go func() {
		done <- run(t, g, exec)
	}()

	require.Eventually(t, func() bool {
		exec.mu.Lock()
		defer exec.mu.Unlock()
		_, l := exec.start["left"]
		_, r := exec.start["right"]
		return l && r
	}, 2*time.Second, time.Millisecond, "independent jobs never ran concurrently")

	close(release)
	s := <-done
	assert.True(t, s.Success)
}

func TestEachJobDispatchedAtMostOnce(t *testing.T) {
	// The fake executor panics on duplicate dispatch; a diamond exercises
	// the counter paths that could double-enqueue.
	g := mustBuild(t, job("a"), job("b", "a"), job("c", "a"), job("d", "b", "c"))
	s := run(t, g, newFakeExecutor())
	require.True(t, s.Success)
}

func TestEventStreamForSingleJob(t *testing.T) {
	g := mustBuild(t, job("only"))

	var mu sync.Mutex
	var transitions [][2]report.State
	sink := events.SinkFunc(func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, [2]report.State{e.From, e.To})
	})

	run(t, g, newFakeExecutor(), WithSink(sink))

	require.Equal(t, [][2]report.State{
		{report.Pending, report.Ready},
		{report.Ready, report.Running},
		{report.Running, report.Succeeded},
	}, transitions)
}

func TestDryRunProducesSameStateSequenceAsTrivialSuccess(t *testing.T) {
	build := func() *graph.Graph {
		return mustBuild(t, job("a"), job("b", "a"), jobIf("c", workflow.Always, "b"))
	}

	collect := func(exec runner.Executor) map[string][]report.State {
		seq := make(map[string][]report.State)
		var mu sync.Mutex
		sink := events.SinkFunc(func(e events.Event) {
			mu.Lock()
			defer mu.Unlock()
			seq[e.JobID] = append(seq[e.JobID], e.To)
		})
		run(t, build(), exec, WithSink(sink), WithWorkers(1))
		return seq
	}

	real := collect(newFakeExecutor())
	dry := collect(runner.NewDryRun(nil, nil))
	assert.Equal(t, real, dry)
}

func TestContextCancellationFailsUndispatchedJobs(t *testing.T) {
	g := mustBuild(t, job("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := New(g, newFakeExecutor()).Run(ctx)
	s := rep.Summarize()

	assert.False(t, s.Success)
	assert.Equal(t, report.Failed, jobStateOf(t, s, "a"))
}

func TestWorkerPoolBoundStillCompletesGraph(t *testing.T) {
	g := mustBuild(t, job("a"), job("b"), job("c", "a", "b"), job("d", "c"))
	s := run(t, g, newFakeExecutor(), WithWorkers(1))
	require.True(t, s.Success)
	assert.Equal(t, 4, s.Counts[report.Succeeded])
}

func TestRunIDPropagatesToReport(t *testing.T) {
	g := mustBuild(t, job("a"))
	rep := New(g, newFakeExecutor(), WithRunID("boot-42")).Run(context.Background())
	assert.Equal(t, "boot-42", rep.RunID())
}
