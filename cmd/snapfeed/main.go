// Package main provides the snapfeed CLI entrypoint.
//
// Usage:
//
//	snapfeed <command> [options]
//
// Exit codes for `run`:
//   - 0: clean shutdown on SIGINT/SIGTERM
//   - 1: camera, adapter or archive setup failure
//   - 2: configuration error (invalid config or mode); the loop never started
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/snapfeed/cli/cmd"
	"github.com/justapithecus/snapfeed/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// osExit is replaced in tests.
var osExit = os.Exit

func main() {
	app := &cli.App{
		Name:           "snapfeed",
		Usage:          "Adaptive camera capture and feed delivery agent",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.ConfigCommand(),
			cmd.WatchCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		osExit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	handleExit(err, os.Stderr)
}

// handleExit prints the diagnostic (once) and exits with the carried code.
func handleExit(err error, stderr io.Writer) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(stderr, msg)
		}
		osExit(code)
		return
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	osExit(1)
}
