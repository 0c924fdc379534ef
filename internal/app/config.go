package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// WorkflowPath points at the workflow document (YAML, or HCL by
	// extension).
	WorkflowPath string
	// Newroot is the new root mount directory exposed to jobs as NEWROOT.
	Newroot string
	// DryRun selects the recording executor instead of the container one.
	DryRun bool
	// ReportPath receives the JSON run report. Empty disables it, "-" means
	// the app's output writer.
	ReportPath string
	// Sweep removes containers leaked by earlier runs instead of executing a
	// workflow.
	Sweep bool

	LogFormat       string
	LogLevel        string
	Workers         int
	HealthcheckPort int
	// RuntimeParallel bounds simultaneous container acquisitions in the real
	// runtime. Zero means unbounded.
	RuntimeParallel int
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
