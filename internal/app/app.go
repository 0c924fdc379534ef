// Package app wires the application together: logger, document loader,
// graph validation, executor selection, and the run itself.
package app

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/vk/bootflow/internal/hcldoc"
	"github.com/vk/bootflow/internal/workflow"
	"github.com/vk/bootflow/internal/yamldoc"
)

// ErrValidation marks failures detected before any job executed: unreadable
// or malformed documents and invalid dependency graphs.
var ErrValidation = errors.New("workflow validation failed")

// ErrExecution marks a completed run whose report is not a success.
var ErrExecution = errors.New("workflow execution failed")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	httpServer *http.Server
}

// New is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger.
func New(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
	}
}

// Logger returns the application's logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// loaderFor picks the document loader by file extension. YAML is the native
// format; .hcl selects the HCL loader.
func loaderFor(path string) workflow.Loader {
	if filepath.Ext(path) == ".hcl" {
		return hcldoc.NewLoader()
	}
	return yamldoc.NewLoader()
}
