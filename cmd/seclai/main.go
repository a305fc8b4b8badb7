// Package main provides the seclai CLI entrypoint.
//
// Usage:
//
//	seclai [global options] <command> [subcommand] [options]
//
// Exit codes:
//   - 0: success
//   - 1: error
//   - 2: a run stream timed out
//   - 3: a streamed run failed
//   - 4: cancelled (e.g. Ctrl-C)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/seclai/seclai-go/internal/cmd"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cmd.NewApp(version)
	app.ExitErrHandler = exitErrHandler

	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		os.Exit(cmd.ExitCode(err))
	}
}

// exitErrHandler prints the error and exits with the code carried by
// cli.Exit errors.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg := exitCoder.Error(); msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(cmd.ExitCode(err))
}
