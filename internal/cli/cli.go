// Package cli parses command-line arguments into an app.Config and owns the
// process exit-code contract.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/vk/bootflow/internal/app"
)

// Exit codes. Validation and execution failures are distinct so boot scripts
// can tell a broken document from a failed job.
const (
	ExitUsage      = 2
	ExitValidation = 3
	ExitExecution  = 1
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// envDefaults are flag defaults taken from the environment. Boot-time
// invocations usually configure the tool through BOOTFLOW_* variables
// propagated from the kernel command line; explicit flags win.
type envDefaults struct {
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string `envconfig:"LOG_FORMAT" default:"text"`
	Newroot         string `envconfig:"NEWROOT" default:"/sysroot"`
	RuntimeParallel int    `envconfig:"RUNTIME_PARALLEL" default:"0"`
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var defaults envDefaults
	if err := envconfig.Process("bootflow", &defaults); err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	flagSet := flag.NewFlagSet("bootflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
bootflow - Prepare, run and collect workflow containers during early boot.

Usage:
  bootflow [options] [WORKFLOW_PATH]

Arguments:
  WORKFLOW_PATH
    Path to the workflow document (.yaml/.yml, or .hcl).

Options:
`)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "", "Path to the workflow document.")
	fFlag := flagSet.String("f", "", "Path to the workflow document (shorthand).")
	newrootFlag := flagSet.String("newroot", defaults.Newroot, "Newroot mount directory, exposed to jobs as NEWROOT.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Record scheduling decisions without starting containers.")
	sweepFlag := flagSet.Bool("sweep", false, "Remove containers leaked by earlier runs and exit.")
	reportFlag := flagSet.String("report", "", "Write the JSON run report to this path ('-' for stdout).")
	logFormatFlag := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers. 0 means one per job.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	runtimeParallelFlag := flagSet.Int("runtime-parallel", defaults.RuntimeParallel, "Max simultaneous container acquisitions. 0 is unbounded.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := "control.yaml"
	if *workflowFlag != "" {
		path = *workflowFlag
	} else if *fFlag != "" {
		path = *fFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Workflow path determined.", "path", path)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		WorkflowPath:    path,
		Newroot:         *newrootFlag,
		DryRun:          *dryRunFlag,
		Sweep:           *sweepFlag,
		ReportPath:      *reportFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Workers:         *workersFlag,
		HealthcheckPort: *healthPortFlag,
		RuntimeParallel: *runtimeParallelFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
