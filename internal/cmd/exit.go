package cmd

import (
	"context"
	"errors"

	"github.com/urfave/cli/v2"

	seclai "github.com/seclai/seclai-go"
)

// Exit codes.
const (
	exitOK        = 0
	exitError     = 1
	exitTimeout   = 2
	exitRunFailed = 3
	exitCancelled = 4
)

// ExitCode maps a command error onto the process exit code.
func ExitCode(err error) int {
	var coder cli.ExitCoder
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &coder):
		return coder.ExitCode()
	case errors.Is(err, seclai.ErrStreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return exitTimeout
	case errors.Is(err, seclai.ErrStreamCancelled), errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitError
	}
}

// exitWith wraps err so that ExitErrHandler exits with its mapped code.
func exitWith(err error) error {
	if err == nil {
		return nil
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return err
	}
	return cli.Exit(err.Error(), ExitCode(err))
}
