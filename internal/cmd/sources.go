package cmd

import (
	"github.com/urfave/cli/v2"

	seclai "github.com/seclai/seclai-go"
)

// SourcesCommand returns the sources command with subcommands.
func SourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Inspect content sources",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sources",
				Flags: append(pageFlags(),
					&cli.StringFlag{Name: "sort", Usage: "Sort field, e.g. created_at"},
					&cli.StringFlag{Name: "order", Usage: "Sort order: asc, desc"},
					&cli.StringFlag{Name: "account-id", Usage: "Only sources of this account"},
				),
				Action: listSourcesAction,
			},
		},
	}
}

func listSourcesAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}

	opts := &seclai.ListSourcesOptions{
		Page:      c.Int("page"),
		Limit:     c.Int("limit"),
		Sort:      c.String("sort"),
		Order:     c.String("order"),
		AccountID: c.String("account-id"),
	}

	if c.Bool("all") {
		var all []seclai.Source
		for src, err := range client.AllSources(c.Context, opts) {
			if err != nil {
				return exitWith(err)
			}
			all = append(all, src)
		}
		return e.render(all)
	}

	list, err := client.ListSources(c.Context, opts)
	if err != nil {
		return exitWith(err)
	}
	return e.render(list)
}
