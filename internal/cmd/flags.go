// Package cmd provides the commands of the seclai binary.
package cmd

import "github.com/urfave/cli/v2"

// Global flags. String flags fall back to the config file when empty.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key",
			EnvVars: []string{"SECLAI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "API root, e.g. https://seclai.com",
			EnvVars: []string{"SECLAI_API_URL"},
		},
		&cli.StringFlag{
			Name:  "api-key-header",
			Usage: "Header carrying the API key (default x-api-key)",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML config file (default <user config dir>/seclai/config.yaml)",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"SECLAI_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:  "journal",
			Usage: `Run journal database; "" keeps the journal in memory`,
		},
		&cli.StringFlag{
			Name:  "metrics-listen",
			Usage: "Serve Prometheus metrics on this address, e.g. :9464",
		},
		&cli.StringFlag{
			Name:    "otlp-endpoint",
			Usage:   "Export traces to this OTLP/HTTP collector (host:port)",
			EnvVars: []string{"SECLAI_OTLP_ENDPOINT"},
		},
		&cli.BoolFlag{
			Name:  "otlp-insecure",
			Usage: "Use plain HTTP for the OTLP exporter",
		},
		formatFlag,
	}
}

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "Output format: json, yaml",
	Value:   "json",
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Usage: "Page number (1-based)"},
		&cli.IntFlag{Name: "limit", Usage: "Page size"},
		&cli.BoolFlag{Name: "all", Usage: "Walk every page and print all items"},
	}
}

var agentFlag = &cli.StringFlag{
	Name:     "agent",
	Aliases:  []string{"a"},
	Usage:    "Agent id",
	Required: true,
}

var runFlag = &cli.StringFlag{
	Name:     "run",
	Aliases:  []string{"r"},
	Usage:    "Run id",
	Required: true,
}

var contentFlag = &cli.StringFlag{
	Name:     "id",
	Usage:    "Content version id",
	Required: true,
}

var metadataFlag = &cli.StringSliceFlag{
	Name:  "metadata",
	Usage: "Run metadata as key=value (repeatable)",
}
