package cmd

import (
	"github.com/urfave/cli/v2"
)

// NewApp returns the seclai CLI application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:     "seclai",
		Usage:    "Seclai API command line client",
		Version:  version,
		Flags:    globalFlags(),
		Before:   before(version),
		After:    after,
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			SourcesCommand(),
			RunsCommand(),
			ContentsCommand(),
			UploadCommand(),
		},
	}
}
