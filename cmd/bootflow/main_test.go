package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bootflow/internal/app"
	"github.com/vk/bootflow/internal/cli"
)

func TestRun_ShouldExit(t *testing.T) {
	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_InvalidDocumentIsValidationError(t *testing.T) {
	// --- Arrange ---
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "control.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte("jobs: [broken"), 0o600))

	args := []string{"-dry-run", filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err)
	require.True(t, errors.Is(err, app.ErrValidation))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, cli.ExitUsage, exitCode(&cli.ExitError{Code: cli.ExitUsage, Message: "bad flag"}))
	assert.Equal(t, cli.ExitValidation, exitCode(fmt.Errorf("%w: cycle", app.ErrValidation)))
	assert.Equal(t, cli.ExitExecution, exitCode(fmt.Errorf("%w: 1 job(s) failed", app.ErrExecution)))
	assert.Equal(t, cli.ExitExecution, exitCode(errors.New("anything else")))
}
