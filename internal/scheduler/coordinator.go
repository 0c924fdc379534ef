package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/events"
	"github.com/vk/bootflow/internal/graph"
	"github.com/vk/bootflow/internal/report"
	"github.com/vk/bootflow/internal/runner"
)

// Coordinator walks a validated graph and drives every job to a terminal
// state through the configured executor.
type Coordinator struct {
	graph   *graph.Graph
	exec    runner.Executor
	sink    events.Sink
	workers int
	runID   string

	rep    *report.Report
	states map[string]*jobState
	ready  chan string
	wg     sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers bounds the worker pool. Zero or negative means one worker per
// job, which imposes no concurrency ceiling beyond what dependencies dictate.
func WithWorkers(n int) Option {
	return func(c *Coordinator) { c.workers = n }
}

// WithSink installs the event sink receiving job transition events.
func WithSink(s events.Sink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// WithRunID sets the run id recorded on the report, so it matches ids the
// caller already handed to the executor (container labels). Empty means
// generated.
func WithRunID(id string) Option {
	return func(c *Coordinator) { c.runID = id }
}

// New creates a coordinator for one run over the given graph.
func New(g *graph.Graph, exec runner.Executor, opts ...Option) *Coordinator {
	c := &Coordinator{
		graph:  g,
		exec:   exec,
		sink:   events.Discard,
		states: make(map[string]*jobState, g.Len()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 || c.workers > g.Len() {
		c.workers = g.Len()
	}
	for _, id := range g.Jobs() {
		c.states[id] = newJobState(len(g.Dependencies(id)))
	}
	return c
}

// Run executes the whole graph and returns the finalized report. It returns
// when every job has reached a terminal state.
func (c *Coordinator) Run(ctx context.Context) *report.Report {
	logger := ctxlog.FromContext(ctx)
	c.rep = report.New(c.graph.Jobs(), c.runID)

	// Capacity for every job: unlocking a dependent from a worker must never
	// block the worker.
	c.ready = make(chan string, c.graph.Len())
	c.wg.Add(c.graph.Len())

	// Roots are ready immediately. Topological order makes the initial
	// dispatch order deterministic.
	roots := 0
	for _, id := range c.graph.TopoOrder() {
		if c.states[id].depCount.Load() == 0 {
			c.markReady(ctx, id)
			c.ready <- id
			roots++
		}
	}
	logger.Debug("Coordinator initialized.", "run_id", c.rep.RunID(), "jobs", c.graph.Len(), "roots", roots, "workers", c.workers)

	for i := 0; i < c.workers; i++ {
		go c.worker(ctx, i)
	}

	logger.Info("🚀 Executing workflow.", "run_id", c.rep.RunID(), "jobs", c.graph.Len())
	c.wg.Wait()
	close(c.ready)
	logger.Info("🏁 Workflow finished.", "run_id", c.rep.RunID())

	return c.rep
}

// markReady transitions a job to Ready. Each job passes through here exactly
// once: roots at startup, everything else when its last blocking dependency
// reaches a terminal state.
func (c *Coordinator) markReady(ctx context.Context, id string) {
	prev := c.states[id].transition(report.Ready, 0, nil)
	c.publish(ctx, id, prev, report.Ready, nil)
}

// finalize records a job's terminal state, feeds the report, and unlocks
// dependents. The state transition happens before any dependent can be
// dispatched, so no observer sees a partial outcome.
func (c *Coordinator) finalize(ctx context.Context, id string, state report.State, exitCode int, err error) {
	logger := ctxlog.FromContext(ctx)

	prev := c.states[id].transition(state, exitCode, err)
	c.publish(ctx, id, prev, state, err)

	if addErr := c.rep.Add(id, state, exitCode, err); addErr != nil {
		// Double finalization would be a coordinator bug, not a job failure.
		logger.Error("Report entry rejected.", "job", id, "error", addErr)
	}

	for _, dependent := range c.graph.Dependents(id) {
		if c.states[dependent].depCount.Add(-1) == 0 {
			logger.Debug("Unlocking dependent job.", "job", id, "dependent", dependent)
			c.markReady(ctx, dependent)
			c.ready <- dependent
		}
	}

	c.wg.Done()
}

func (c *Coordinator) publish(ctx context.Context, id string, from, to report.State, err error) {
	ctxlog.FromContext(ctx).Debug("Job state transition.", "job", id, "from", string(from), "to", string(to))
	c.sink.Publish(events.Event{JobID: id, From: from, To: to, Err: err, At: time.Now()})
}
