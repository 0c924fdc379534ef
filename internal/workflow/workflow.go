// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package workflow

import "context"

// Workflow is the root of the in-memory model. Jobs preserve document order,
// which seeds the deterministic scheduling tie-break.
type Workflow struct {
	// Name is the optional human-readable workflow name, logged at load time.
	Name string
	// Env holds workflow-level environment variables, layered under every
	// job's container env and every step's env.
	Env map[string]string
	// Jobs is the ordered list of job definitions.
	Jobs []*Job
}

// Job is a single named unit of container-based work.
type Job struct {
	// ID is the unique identifier of the job within the workflow.
	ID string
	// Needs lists the ids of jobs this job waits for. May be empty.
	Needs []string
	// Condition governs whether the job runs given its dependencies' outcomes.
	Condition Condition
	// Container describes the environment the job's steps execute in.
	Container ContainerSpec
	// Services holds optional sidecar containers started before the job's
	// steps and torn down after, keyed by service name.
	Services map[string]ContainerSpec
	// Steps is the ordered command sequence. Execution is sequential and
	// stops at the first failing step.
	Steps []Step
}

// ContainerSpec describes a single container to acquire.
type ContainerSpec struct {
	Image      string
	Privileged bool
	Mounts     []Mount
	Env        map[string]string
	WorkDir    string
}

// Mount is a host path bound into a container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Step is one command executed inside a job's container.
type Step struct {
	// Name is an optional label used in logs and failure reasons.
	Name string
	// Run is the shell command to execute.
	Run string
	// Env holds step-local environment variables, layered over the job's.
	Env map[string]string
}

// Label returns the step's name, or its command when unnamed.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Run
}

// Loader is the interface for a format-specific workflow document loader.
// Implementations translate one concrete syntax into the Workflow model.
type Loader interface {
	Load(ctx context.Context, path string) (*Workflow, error)
}
