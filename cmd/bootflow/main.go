package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/bootflow/internal/app"
	"github.com/vk/bootflow/internal/cli"
)

// main is the entrypoint for the bootflow binary.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	bootflowApp := app.New(outW, appConfig)
	return bootflowApp.Run(context.Background())
}

// exitCode maps an error to the process exit status: 2 for usage, 3 for an
// invalid workflow document, 1 for a run that executed and failed.
func exitCode(err error) int {
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, app.ErrValidation) {
		return cli.ExitValidation
	}
	return cli.ExitExecution
}
