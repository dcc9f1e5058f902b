package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/urfave/cli/v3"
)

// UploadCommand creates the upload command
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload an image and print its URL",
		ArgsUsage: "<file>",
		Action: withSession(func(ctx context.Context, c *cli.Command, s *session) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("file required")
			}
			up, err := s.uploader()
			if err != nil {
				return err
			}
			u, err := up.UploadFile(ctx, path)
			if err != nil {
				return fmt.Errorf("uploading %s: %w", path, err)
			}
			fmt.Fprintln(s.stdout, u)
			return nil
		}),
	}
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
