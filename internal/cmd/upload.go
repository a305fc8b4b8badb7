package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	seclai "github.com/seclai/seclai-go"
)

// UploadCommand returns the upload command.
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload a file to a source",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "Source connection id", Required: true},
			&cli.StringFlag{Name: "file", Usage: "Path of the file to upload", Required: true},
			&cli.StringFlag{Name: "title", Usage: "Display title"},
			&cli.StringFlag{Name: "content-type", Usage: "MIME type of the file"},
		},
		Action: uploadAction,
	}
}

func uploadAction(c *cli.Context) error {
	e := getEnv(c)
	client, err := e.Client()
	if err != nil {
		return err
	}

	path := c.String("file")
	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open %s: %v", path, err), exitError)
	}
	defer f.Close()

	resp, err := client.UploadFileToSource(c.Context, c.String("source"), filepath.Base(path), f, &seclai.UploadOptions{
		Title:       c.String("title"),
		ContentType: c.String("content-type"),
	})
	if err != nil {
		return exitWith(err)
	}
	return e.render(resp)
}
