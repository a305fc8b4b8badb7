package cmd

import (
	"github.com/urfave/cli/v2"

	seclai "github.com/seclai/seclai-go"
)

// ContentsCommand returns the contents command with subcommands.
func ContentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "contents",
		Usage: "Read and delete content versions",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show a content version, optionally a character range of it",
				Flags: []cli.Flag{
					contentFlag,
					&cli.IntFlag{Name: "start", Usage: "First character offset"},
					&cli.IntFlag{Name: "end", Usage: "End character offset"},
				},
				Action: getContentAction,
			},
			{
				Name:   "delete",
				Usage:  "Delete a content version",
				Flags:  []cli.Flag{contentFlag},
				Action: deleteContentAction,
			},
			{
				Name:   "embeddings",
				Usage:  "List the embeddings of a content version",
				Flags:  append([]cli.Flag{contentFlag}, pageFlags()...),
				Action: listEmbeddingsAction,
			},
		},
	}
}

func getContentAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}

	var opts *seclai.ContentRangeOptions
	if c.IsSet("start") || c.IsSet("end") {
		opts = &seclai.ContentRangeOptions{Start: c.Int("start"), End: c.Int("end")}
	}
	detail, err := client.GetContentDetail(c.Context, c.String("id"), opts)
	if err != nil {
		return exitWith(err)
	}
	return e.render(detail)
}

func deleteContentAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}

	id := c.String("id")
	if err := client.DeleteContent(c.Context, id); err != nil {
		return exitWith(err)
	}
	return e.render(map[string]any{"id": id, "deleted": true})
}

func listEmbeddingsAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}

	id := c.String("id")
	if c.Bool("all") {
		var all []seclai.ContentEmbedding
		for emb, err := range client.AllContentEmbeddings(c.Context, id, c.Int("limit")) {
			if err != nil {
				return exitWith(err)
			}
			all = append(all, emb)
		}
		return e.render(all)
	}

	list, err := client.ListContentEmbeddings(c.Context, id, &seclai.PageOptions{
		Page:  c.Int("page"),
		Limit: c.Int("limit"),
	})
	if err != nil {
		return exitWith(err)
	}
	return e.render(list)
}
